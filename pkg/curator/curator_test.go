package curator_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/captions"
	"github.com/papercomputeco/lookbook/pkg/curator"
	"github.com/papercomputeco/lookbook/pkg/eventstream"
	"github.com/papercomputeco/lookbook/pkg/logger"
	"github.com/papercomputeco/lookbook/pkg/models"
	testutils "github.com/papercomputeco/lookbook/pkg/utils/test"
)

func readStore(path string) []captions.Record {
	r := captions.NewReader(path)
	recs := slices.Collect(r.All())
	Expect(r.Err()).NotTo(HaveOccurred())
	return recs
}

var _ = Describe("Curator", func() {
	var (
		ctx       context.Context
		dir       string
		store     string
		captioner *testutils.MockCaptioner
		loads     int
		cur       *curator.Curator
	)

	newCurator := func(batchSize int) *curator.Curator {
		provider := models.NewProvider(models.ProviderConfig{
			NewCaptioner: func() (models.Captioner, error) {
				loads++
				return captioner, nil
			},
		})
		c, err := curator.New(curator.Config{
			Models:    provider,
			BatchSize: batchSize,
			Debounce:  50 * time.Millisecond,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		store = filepath.Join(GinkgoT().TempDir(), "captions.jsonl")
		captioner = testutils.NewMockCaptioner()
		loads = 0
		cur = newCurator(64)
	})

	It("requires a model provider", func() {
		_, err := curator.New(curator.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("ProcessDirectory", func() {
		It("captions 70 images in two flushes of 64 and 6", func() {
			names, err := testutils.WriteImages(dir, 70)
			Expect(err).NotTo(HaveOccurred())

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(curator.Stats{Discovered: 70, Captioned: 70, Batches: 2}))

			Expect(captioner.Batches).To(HaveLen(2))
			Expect(captioner.Batches[0]).To(HaveLen(64))
			Expect(captioner.Batches[1]).To(HaveLen(6))

			recs := readStore(store)
			Expect(recs).To(HaveLen(70))
			for i, rec := range recs {
				Expect(rec.Filename).To(Equal(names[i]))
				Expect(rec.Path).To(Equal(filepath.Join(dir, names[i])))
				Expect(rec.Caption).To(Equal("A photo of " + names[i]))
			}

			done, total := cur.Progress()
			Expect(done).To(Equal(70))
			Expect(total).To(Equal(70))
		})

		It("flushes a trailing partial batch", func() {
			cur = newCurator(4)
			_, err := testutils.WriteImages(dir, 9)
			Expect(err).NotTo(HaveOccurred())

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Batches).To(Equal(3))
			Expect(readStore(store)).To(HaveLen(9))
		})

		It("sends the configured task prompt and cleans the output", func() {
			_, err := testutils.WriteImages(dir, 1)
			Expect(err).NotTo(HaveOccurred())
			captioner.Captions["img_000.png"] = "  <MORE_DETAILED_CAPTION> A navy blazer.  "

			_, err = cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())

			Expect(captioner.Prompts).To(Equal([]string{curator.DefaultPrompt}))
			Expect(readStore(store)[0].Caption).To(Equal("A navy blazer."))
		})

		It("is a no-op on an unchanged directory and never loads the captioner", func() {
			_, err := testutils.WriteImages(dir, 5)
			Expect(err).NotTo(HaveOccurred())

			_, err = cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			before, err := os.ReadFile(store)
			Expect(err).NotTo(HaveOccurred())

			fresh := newCurator(64)
			loads = 0
			stats, err := fresh.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(curator.Stats{Discovered: 5, AlreadyProcessed: 5}))
			Expect(loads).To(BeZero())

			after, err := os.ReadFile(store)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("resumes an interrupted run to the same store as an uninterrupted one", func() {
			_, err := testutils.WriteImages(dir, 70)
			Expect(err).NotTo(HaveOccurred())

			reference := filepath.Join(GinkgoT().TempDir(), "reference.jsonl")
			_, err = newCurator(64).ProcessDirectory(ctx, dir, reference)
			Expect(err).NotTo(HaveOccurred())

			// First run loses its second batch, as if killed mid-flush.
			captioner.Batches = nil
			captioner.FailOnCall = 2
			stats, err := newCurator(64).ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Captioned).To(Equal(64))
			Expect(stats.CaptionFailures).To(Equal(6))

			captioner.FailOnCall = 0
			stats, err = newCurator(64).ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.AlreadyProcessed).To(Equal(64))
			Expect(stats.Captioned).To(Equal(6))

			Expect(readStore(store)).To(Equal(readStore(reference)))
		})

		It("resumes after a torn final line", func() {
			_, err := testutils.WriteImages(dir, 3)
			Expect(err).NotTo(HaveOccurred())

			torn := `{"filename":"img_000.png","caption":"A photo of img_000.png","path":"` +
				filepath.Join(dir, "img_000.png") + `"}` + "\n" + `{"filename":"img_001.p`
			Expect(os.WriteFile(store, []byte(torn), 0o600)).To(Succeed())

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.AlreadyProcessed).To(Equal(1))
			Expect(stats.Captioned).To(Equal(2))

			recs := readStore(store)
			Expect(recs).To(HaveLen(3))
			seen := map[string]int{}
			for _, r := range recs {
				seen[r.Filename]++
			}
			Expect(seen).To(Equal(map[string]int{"img_000.png": 1, "img_001.png": 1, "img_002.png": 1}))
		})

		It("skips unreadable images without aborting", func() {
			_, err := testutils.WriteImages(dir, 3)
			Expect(err).NotTo(HaveOccurred())
			_, err = testutils.WriteCorrupt(dir, "img_001b.jpg")
			Expect(err).NotTo(HaveOccurred())

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Discovered).To(Equal(4))
			Expect(stats.DecodeFailures).To(Equal(1))
			Expect(stats.Captioned).To(Equal(3))
			Expect(captioner.Batches).To(Equal([][]string{{"img_000.png", "img_001.png", "img_002.png"}}))
		})

		It("drops a batch whose caption count does not match", func() {
			_, err := testutils.WriteImages(dir, 2)
			Expect(err).NotTo(HaveOccurred())
			captioner.ShortBy = 1

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.CaptionFailures).To(Equal(2))
			Expect(readStore(store)).To(BeEmpty())
		})

		It("fails fast when another writer holds the store", func() {
			_, err := testutils.WriteImages(dir, 1)
			Expect(err).NotTo(HaveOccurred())

			w, err := captions.OpenWriter(store)
			Expect(err).NotTo(HaveOccurred())
			defer w.Close()

			_, err = cur.ProcessDirectory(ctx, dir, store)
			Expect(err).To(MatchError(captions.ErrLocked))
		})

		It("reads the store only while holding the writer lock", func() {
			names, err := testutils.WriteImages(dir, 2)
			Expect(err).NotTo(HaveOccurred())

			// Another curator holds the store and has captioned everything.
			w, err := captions.OpenWriter(store)
			Expect(err).NotTo(HaveOccurred())
			for _, name := range names {
				Expect(w.Append(captions.Record{Filename: name, Caption: "done", Path: filepath.Join(dir, name)})).To(Succeed())
			}

			_, err = cur.ProcessDirectory(ctx, dir, store)
			Expect(err).To(MatchError(captions.ErrLocked))

			Expect(w.Close()).To(Succeed())

			stats, err := cur.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.AlreadyProcessed).To(Equal(2))
			Expect(stats.Captioned).To(BeZero())
			Expect(captioner.Batches).To(BeEmpty())
			Expect(readStore(store)).To(HaveLen(2))
		})

		It("returns the cancellation error", func() {
			_, err := testutils.WriteImages(dir, 2)
			Expect(err).NotTo(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err = cur.ProcessDirectory(cancelled, dir, store)
			Expect(err).To(MatchError(context.Canceled))
		})

		It("errors on a missing source directory", func() {
			_, err := cur.ProcessDirectory(ctx, filepath.Join(dir, "missing"), store)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("events", func() {
		It("publishes once per run that captions something", func() {
			events := testutils.NewMockPublisher()
			provider := models.NewProvider(models.ProviderConfig{
				NewCaptioner: func() (models.Captioner, error) { return captioner, nil },
			})
			c, err := curator.New(curator.Config{Models: provider, Events: events, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			_, err = testutils.WriteImages(dir, 3)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())
			_, err = c.ProcessDirectory(ctx, dir, store)
			Expect(err).NotTo(HaveOccurred())

			published := events.Events()
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventType).To(Equal(eventstream.EventTypeImagesCaptioned))
			Expect(published[0].Source.CaptionStore).To(Equal(store))
			Expect(published[0].Curation.Captioned).To(Equal(3))
		})
	})

	Describe("Watch", func() {
		It("captions images added after it starts", func() {
			_, err := testutils.WriteImages(dir, 2)
			Expect(err).NotTo(HaveOccurred())

			watchCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- cur.Watch(watchCtx, dir, store)
			}()

			Eventually(func() int { return len(readStore(store)) }).Should(Equal(2))

			_, err = testutils.WritePNG(dir, "late.png", 99)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int { return len(readStore(store)) }, "5s").Should(Equal(3))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
