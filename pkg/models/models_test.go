package models_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/logger"
	"github.com/papercomputeco/lookbook/pkg/models"
	testutils "github.com/papercomputeco/lookbook/pkg/utils/test"
)

var _ = Describe("Normalize", func() {
	It("scales a vector to unit length", func() {
		v, err := models.Normalize([]float32{3, 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(v[0]).To(BeNumerically("~", 0.6, 1e-6))
		Expect(v[1]).To(BeNumerically("~", 0.8, 1e-6))
		Expect(testutils.Norm(v)).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("does not modify the input", func() {
		in := []float32{0, 2, 0}
		_, err := models.Normalize(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(in).To(Equal([]float32{0, 2, 0}))
	})

	It("keeps high-dimensional vectors within tolerance of unit norm", func() {
		v, err := models.Normalize(testutils.HashVector("red jacket", 1152))
		Expect(err).NotTo(HaveOccurred())
		Expect(testutils.Norm(v)).To(BeNumerically("~", 1.0, 1e-5))
	})

	DescribeTable("rejects degenerate vectors",
		func(v []float32) {
			_, err := models.Normalize(v)
			Expect(err).To(MatchError(models.ErrDegenerateVector))
		},
		Entry("all zeros", []float32{0, 0, 0}),
		Entry("empty", []float32{}),
		Entry("NaN component", []float32{1, float32(math.NaN())}),
		Entry("infinite component", []float32{float32(math.Inf(1)), 1}),
	)
})

var _ = Describe("CleanCaption", func() {
	const prompt = "<MORE_DETAILED_CAPTION>"

	DescribeTable("strips control tokens and whitespace",
		func(raw, want string) {
			Expect(models.CleanCaption(raw, prompt)).To(Equal(want))
		},
		Entry("seq2seq framing", "</s><s>A red wool coat.</s><pad><pad>", "A red wool coat."),
		Entry("echoed task prompt", "<MORE_DETAILED_CAPTION> A denim jacket ", "A denim jacket"),
		Entry("unknown token", "A <unk>striped shirt", "A striped shirt"),
		Entry("already clean", "White sneakers", "White sneakers"),
		Entry("only tokens", "<pad><pad></s>", ""),
	)

	It("leaves other angle-bracket text alone", func() {
		Expect(models.CleanCaption("size <M> tee", prompt)).To(Equal("size <M> tee"))
	})
})

var _ = Describe("Provider", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("constructs each model once", func() {
		embedderLoads, captionerLoads := 0, 0
		p := models.NewProvider(models.ProviderConfig{
			NewEmbedder: func() (models.Embedder, error) {
				embedderLoads++
				return testutils.NewMockEmbedder(), nil
			},
			NewCaptioner: func() (models.Captioner, error) {
				captionerLoads++
				return testutils.NewMockCaptioner(), nil
			},
			Logger: logger.Nop(),
		})

		e1, err := p.Embedder()
		Expect(err).NotTo(HaveOccurred())
		e2, err := p.Embedder()
		Expect(err).NotTo(HaveOccurred())
		Expect(e1).To(BeIdenticalTo(e2))

		c1, err := p.Captioner()
		Expect(err).NotTo(HaveOccurred())
		c2, err := p.Captioner()
		Expect(err).NotTo(HaveOccurred())
		Expect(c1).To(BeIdenticalTo(c2))

		Expect(embedderLoads).To(Equal(1))
		Expect(captionerLoads).To(Equal(1))
		Expect(p.Close()).To(Succeed())
	})

	It("does not load anything until asked", func() {
		loads := 0
		p := models.NewProvider(models.ProviderConfig{
			NewEmbedder: func() (models.Embedder, error) {
				loads++
				return testutils.NewMockEmbedder(), nil
			},
		})
		Expect(loads).To(BeZero())
		Expect(p.Close()).To(Succeed())
	})

	It("remembers a failed load", func() {
		loads := 0
		boom := errors.New("no accelerator")
		p := models.NewProvider(models.ProviderConfig{
			NewEmbedder: func() (models.Embedder, error) {
				loads++
				return nil, boom
			},
		})

		_, err := p.Embedder()
		Expect(err).To(MatchError(boom))
		_, err = p.Embedder()
		Expect(err).To(MatchError(boom))
		Expect(loads).To(Equal(1))
	})

	It("reports a missing factory", func() {
		p := models.NewProvider(models.ProviderConfig{})
		_, err := p.Captioner()
		Expect(err).To(MatchError(models.ErrNotConfigured))
	})

	It("serves text embeddings through the cache", func() {
		mock := testutils.NewMockEmbedder()
		p := models.NewProvider(models.ProviderConfig{
			NewEmbedder: func() (models.Embedder, error) { return mock, nil },
		})

		e, err := p.Embedder()
		Expect(err).NotTo(HaveOccurred())

		_, err = e.EmbedText(ctx, "red jacket")
		Expect(err).NotTo(HaveOccurred())
		_, err = e.EmbedText(ctx, "red jacket")
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.TextCalls).To(Equal(1))
	})
})

var _ = Describe("CachedEmbedder", func() {
	var (
		ctx    context.Context
		mock   *testutils.MockEmbedder
		cached *models.CachedEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockEmbedder()
		cached = models.NewCachedEmbedder(mock, 2)
	})

	It("returns the same vector on a hit without calling the model", func() {
		v1, err := cached.EmbedText(ctx, "linen shirt")
		Expect(err).NotTo(HaveOccurred())
		v2, err := cached.EmbedText(ctx, "linen shirt")
		Expect(err).NotTo(HaveOccurred())

		Expect(v2).To(Equal(v1))
		Expect(mock.TextCalls).To(Equal(1))
		Expect(cached.Len()).To(Equal(1))
	})

	It("evicts the least recently used entry", func() {
		for _, q := range []string{"a", "b", "c", "a"} {
			_, err := cached.EmbedText(ctx, q)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(mock.TextCalls).To(Equal(4))
		Expect(cached.Len()).To(Equal(2))
	})

	It("does not cache failures", func() {
		mock.FailOnText = "broken"
		_, err := cached.EmbedText(ctx, "broken")
		Expect(err).To(MatchError(models.ErrEmbedding))
		Expect(cached.Len()).To(BeZero())
	})

	It("keys entries by model", func() {
		_, err := cached.EmbedText(ctx, "boots")
		Expect(err).NotTo(HaveOccurred())

		mock.Model = "other-model"
		_, err = cached.EmbedText(ctx, "boots")
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.TextCalls).To(Equal(2))
	})

	It("passes image batches through", func() {
		_, err := cached.EmbedImages(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(mock.ImageBatches).To(Equal([]int{0}))
	})
})
