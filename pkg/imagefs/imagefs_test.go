package imagefs_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
	testutils "github.com/papercomputeco/lookbook/pkg/utils/test"
)

var _ = Describe("Discover", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("lists supported images in lexical order with absolute paths", func() {
		for _, name := range []string{"b.png", "a.JPG", "c.jpeg", "d.gif"} {
			Expect(os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600)).To(Succeed())
		}

		assets, err := imagefs.Discover(dir)
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, len(assets))
		for i, a := range assets {
			names[i] = a.Filename
			Expect(filepath.IsAbs(a.Path)).To(BeTrue())
			Expect(a.Path).To(Equal(filepath.Join(dir, a.Filename)))
		}
		Expect(names).To(Equal([]string{"a.JPG", "b.png", "c.jpeg", "d.gif"}))
	})

	It("ignores other files and subdirectories", func() {
		Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "photo.webp"), []byte("x"), 0o600)).To(Succeed())
		Expect(os.Mkdir(filepath.Join(dir, "nested.png"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "keep.png"), []byte("x"), 0o600)).To(Succeed())

		assets, err := imagefs.Discover(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(assets).To(HaveLen(1))
		Expect(assets[0].Filename).To(Equal("keep.png"))
	})

	It("errors on a missing directory", func() {
		_, err := imagefs.Discover(filepath.Join(dir, "missing"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("decodes a PNG and keeps the encoded bytes", func() {
		path, err := testutils.WritePNG(dir, "shirt.png", 3)
		Expect(err).NotTo(HaveOccurred())

		img, err := imagefs.Load(imagefs.Asset{Filename: "shirt.png", Path: path})
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Format).To(Equal("png"))
		Expect(img.MimeType()).To(Equal("image/png"))
		Expect(img.Width).To(Equal(8))
		Expect(img.Height).To(Equal(8))
		Expect(img.Data).NotTo(BeEmpty())
		Expect(img.Filename).To(Equal("shirt.png"))
	})

	It("fails on a corrupt image", func() {
		path, err := testutils.WriteCorrupt(dir, "broken.jpg")
		Expect(err).NotTo(HaveOccurred())

		_, err = imagefs.Load(imagefs.Asset{Filename: "broken.jpg", Path: path})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("decoding broken.jpg"))
	})

	It("fails on a missing file", func() {
		_, err := imagefs.Load(imagefs.Asset{Filename: "gone.png", Path: filepath.Join(dir, "gone.png")})
		Expect(err).To(MatchError(os.ErrNotExist))
	})
})

var _ = Describe("IsSupported", func() {
	DescribeTable("matches extensions case-insensitively",
		func(name string, want bool) {
			Expect(imagefs.IsSupported(name)).To(Equal(want))
		},
		Entry("jpg", "a.jpg", true),
		Entry("upper JPEG", "a.JPEG", true),
		Entry("png", "a.png", true),
		Entry("gif", "a.gif", true),
		Entry("webp", "a.webp", false),
		Entry("no extension", "README", false),
	)
})
