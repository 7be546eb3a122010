package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/lookbook/cmd/lookbook/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "lookbook-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// Create a local .lookbook dir so the manager picks it up
		err = os.MkdirAll(filepath.Join(tmpDir, ".lookbook"), 0o755)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		err := os.Chdir(origDir)
		Expect(err).NotTo(HaveOccurred())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("sets a config value successfully", func() {
			Expect(run("set", "images.root", "./photos")).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".lookbook", "config.toml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`root = "./photos"`))
		})

		It("rejects unknown keys", func() {
			err := run("set", "invalid_key", "value")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "images.root")).To(HaveOccurred())
		})

		It("rejects zero arguments", func() {
			Expect(run("set")).To(HaveOccurred())
		})

		It("rejects invalid uint values", func() {
			Expect(run("set", "embedding.dimensions", "not-a-number")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "vector_store.provider", "postgres")).To(Succeed())

			out.Reset()
			Expect(run("get", "vector_store.provider")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("postgres"))
		})

		It("reports defaults when no value is set", func() {
			Expect(run("get", "vector_store.table")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("fashion_items"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("groups keys by section when no config exists", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("[images]"))
			Expect(out.String()).To(ContainSubstring("[api]"))
			Expect(out.String()).To(ContainSubstring("listen"))
		})

		It("marks default values", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`table\s+= "fashion_items" .*\(default\)`))
		})

		It("shows unset keys without a default", func() {
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`brokers\s+= .*<not set>`))
		})

		It("shows values from the config file", func() {
			Expect(run("set", "captioning.model", "llava:13b")).To(Succeed())

			out.Reset()
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(`"llava:13b"`))
			Expect(out.String()).NotTo(MatchRegexp(`"llava:13b" .*\(default\)`))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})
