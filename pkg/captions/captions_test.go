package captions_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/captions"
)

func writeStore(path string, lines ...string) {
	Expect(os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600)).To(Succeed())
}

var _ = Describe("ScanProcessed", func() {
	var store string

	BeforeEach(func() {
		store = filepath.Join(GinkgoT().TempDir(), "captions.jsonl")
	})

	It("returns an empty set for a missing store", func() {
		processed, err := captions.ScanProcessed(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(BeEmpty())
	})

	It("skips a corrupted line and keeps the valid ones", func() {
		writeStore(store,
			`{"filename": "a.png", "caption": "x", "path": "/`,
			`{"filename":"b.png","caption":"blue scarf","path":"/img/b.png"}`,
			`{"filename":"c.png","caption":"green hat","path":"/img/c.png"}`,
			`{"filename":"d.png","caption":"black boots","path":"/img/d.png"}`,
			"",
		)

		processed, err := captions.ScanProcessed(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(HaveLen(3))
		Expect(processed).To(HaveKey("b.png"))
		Expect(processed).To(HaveKey("c.png"))
		Expect(processed).To(HaveKey("d.png"))
	})

	It("ignores records without a filename and non-object lines", func() {
		writeStore(store,
			`{"caption":"orphan","path":"/img/x.png"}`,
			`[1,2,3]`,
			`"just a string"`,
			`{"filename":"ok.png","caption":"fine","path":"/img/ok.png"}`,
		)

		processed, err := captions.ScanProcessed(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(HaveLen(1))
		Expect(processed).To(HaveKey("ok.png"))
	})
})

var _ = Describe("Reader", func() {
	var store string

	BeforeEach(func() {
		store = filepath.Join(GinkgoT().TempDir(), "captions.jsonl")
	})

	It("streams records in file order and counts malformed lines", func() {
		writeStore(store,
			`{"filename":"a.png","caption":"one","path":"/img/a.png"}`,
			`not json`,
			"",
			`{"filename":"b.png","caption":"two","path":"/img/b.png"}`,
			`{"filename":"c.png","capt`,
		)

		r := captions.NewReader(store)
		recs := slices.Collect(r.All())
		Expect(r.Err()).NotTo(HaveOccurred())
		Expect(r.Skipped()).To(Equal(2))
		Expect(recs).To(Equal([]captions.Record{
			{Filename: "a.png", Caption: "one", Path: "/img/a.png"},
			{Filename: "b.png", Caption: "two", Path: "/img/b.png"},
		}))
	})

	It("stops early when the consumer stops", func() {
		writeStore(store,
			`{"filename":"a.png","caption":"one","path":"/img/a.png"}`,
			`{"filename":"b.png","caption":"two","path":"/img/b.png"}`,
		)

		var seen []string
		for rec := range captions.NewReader(store).All() {
			seen = append(seen, rec.Filename)
			break
		}
		Expect(seen).To(Equal([]string{"a.png"}))
	})

	It("reads very long captions", func() {
		long := strings.Repeat("pleated ", 20000)
		writeStore(store, `{"filename":"a.png","caption":"`+long+`","path":"/img/a.png"}`)

		recs := slices.Collect(captions.NewReader(store).All())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Caption).To(Equal(long))
	})
})

var _ = Describe("Writer", func() {
	var store string

	BeforeEach(func() {
		store = filepath.Join(GinkgoT().TempDir(), "nested", "captions.jsonl")
	})

	It("appends one JSON line per record", func() {
		w, err := captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append(captions.Record{Filename: "a.png", Caption: "red coat", Path: "/img/a.png"})).To(Succeed())
		Expect(w.Append(captions.Record{Filename: "b.png", Caption: "tan \"trench\"", Path: "/img/b.png"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		data, err := os.ReadFile(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(
			`{"filename":"a.png","caption":"red coat","path":"/img/a.png"}` + "\n" +
				`{"filename":"b.png","caption":"tan \"trench\"","path":"/img/b.png"}` + "\n",
		))
	})

	It("keeps existing records when reopened", func() {
		w, err := captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append(captions.Record{Filename: "a.png"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		w, err = captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append(captions.Record{Filename: "b.png"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		processed, err := captions.ScanProcessed(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(HaveLen(2))
	})

	It("starts a fresh line after a torn write", func() {
		Expect(os.MkdirAll(filepath.Dir(store), 0o755)).To(Succeed())
		writeStore(store,
			`{"filename":"a.png","caption":"one","path":"/img/a.png"}`,
			`{"filename":"b.png","cap`,
		)

		w, err := captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Append(captions.Record{Filename: "c.png", Caption: "three"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		processed, err := captions.ScanProcessed(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(processed).To(HaveLen(2))
		Expect(processed).To(HaveKey("a.png"))
		Expect(processed).To(HaveKey("c.png"))
	})

	It("rejects a second concurrent writer", func() {
		w, err := captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		defer w.Close()

		_, err = captions.OpenWriter(store)
		Expect(err).To(MatchError(captions.ErrLocked))
	})

	It("allows a new writer once the first is closed", func() {
		w, err := captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		w, err = captions.OpenWriter(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
	})
})
