package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/logger"
)

func decode(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("falls back to text when the writer is not a terminal", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("captioned batch", "images", 64)

			Expect(buf.String()).To(ContainSubstring("msg=\"captioned batch\""))
			Expect(buf.String()).To(ContainSubstring("images=64"))
		})

		It("respects debug level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(true))
			l.Debug("skipping processed image")

			Expect(buf.String()).To(ContainSubstring("skipping processed image"))
		})

		It("filters debug when not enabled", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithDebug(false))
			l.Debug("hidden")

			Expect(buf.String()).To(BeEmpty())
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatJSON))
			l.Info("index built", "rows", 42)

			parsed := decode(&buf)
			Expect(parsed["msg"]).To(Equal("index built"))
			Expect(parsed["rows"]).To(BeNumerically("==", 42))
		})

		It("writes pretty records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithFormat(logger.FormatPretty))
			l.Info("pretty output")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
		})

		It("tags structured records with the component", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatJSON),
				logger.WithComponent("index"),
			)
			l.Warn("dropping existing table", "table", "fashion_items")

			parsed := decode(&buf)
			Expect(parsed["component"]).To(Equal("index"))
			Expect(parsed["table"]).To(Equal("fashion_items"))
		})

		It("prefixes pretty records with the component", func() {
			var buf bytes.Buffer
			l := logger.New(
				logger.WithWriter(&buf),
				logger.WithFormat(logger.FormatPretty),
				logger.WithComponent("curate"),
			)
			l.Info("started")

			Expect(buf.String()).To(ContainSubstring("curate"))
			Expect(buf.String()).To(ContainSubstring("started"))
		})

		It("ignores a nil writer", func() {
			Expect(logger.New(logger.WithWriter(nil)).Handler()).NotTo(BeNil())
		})
	})

	Describe("ParseFormat", func() {
		It("accepts every known format case-insensitively", func() {
			for _, f := range logger.Formats {
				got, err := logger.ParseFormat(strings.ToUpper(string(f)))
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(f))
			}
		})

		It("treats empty as auto", func() {
			Expect(logger.ParseFormat("")).To(Equal(logger.FormatAuto))
		})

		It("rejects unknown formats", func() {
			_, err := logger.ParseFormat("xml")
			Expect(err).To(MatchError(ContainSubstring(`unknown log format "xml"`)))
		})
	})

	Describe("Nop", func() {
		It("does not panic on any method", func() {
			l := logger.Nop()
			Expect(func() {
				l.Debug("msg")
				l.Info("msg")
				l.Warn("msg")
				l.Error("msg")
				l.With("key", "value").Info("msg")
				l.WithGroup("group").Info("msg")
			}).NotTo(Panic())
		})

		It("is disabled at every level", func() {
			h := logger.Nop().Handler()
			Expect(h.Enabled(context.Background(), slog.LevelDebug)).To(BeFalse())
			Expect(h.Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})
})
