package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		Expect(Truncate("./data/metadata_captions_clean.jsonl", 6)).To(Equal("./data..."))
	})

	It("counts runes rather than bytes", func() {
		Expect(Truncate("çà_robe_été.jpg", 4)).To(Equal("çà_r..."))
		Expect(Truncate("été", 3)).To(Equal("été"))
	})

	It("treats a negative limit as zero", func() {
		Expect(Truncate("abc", -1)).To(Equal("..."))
	})
})

var _ = Describe("VersionInfo", func() {
	It("includes the build metadata", func() {
		info := VersionInfo()
		Expect(info).To(ContainSubstring("Version: " + Version))
		Expect(info).To(ContainSubstring("Sha: " + Sha))
		Expect(info).To(HaveSuffix("Built at: " + Buildtime + "\n"))
	})
})
