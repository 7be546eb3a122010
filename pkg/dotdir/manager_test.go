package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/lookbook/pkg/dotdir"
)

var _ = Describe("dotdir", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())

		// Resolve symlinks so paths match filepath.Abs results
		// (e.g. on macOS /var -> /private/var).
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Target", func() {
		It("creates the directory if it doesn't exist", func() {
			dir := filepath.Join(tmpDir, "newdir")
			result, err := m.Target(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(dir))

			info, err := os.Stat(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})

		It("returns the override dir even when a local .lookbook dir exists", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".lookbook"), 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			overrideDir := filepath.Join(tmpDir, "override")
			result, err := m.Target(overrideDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(overrideDir))
		})

		It("prefers LOOKBOOK_HOME over a local .lookbook dir", func() {
			Expect(os.Mkdir(filepath.Join(tmpDir, ".lookbook"), 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			shared := filepath.Join(tmpDir, "shared")
			GinkgoT().Setenv(dotdir.HomeEnv, shared)

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(shared))
			Expect(shared).To(BeADirectory())
		})

		It("returns the local .lookbook dir when no override is provided", func() {
			local := filepath.Join(tmpDir, ".lookbook")
			Expect(os.Mkdir(local, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(local))
		})

		It("falls back to a .lookbook dir under HOME", func() {
			emptyDir := filepath.Join(tmpDir, "empty")
			Expect(os.Mkdir(emptyDir, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(emptyDir)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Setenv("HOME", origHome) })

			result, err := m.Target("")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(filepath.Join(tmpDir, ".lookbook")))
		})
	})

	Describe("LockPath", func() {
		It("places the lock inside the target dir", func() {
			path, err := m.LockPath(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tmpDir, "index.lock")))
		})
	})

	Describe("BuildState", func() {
		It("returns nil when nothing has been recorded", func() {
			state, err := m.LoadBuildState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("round-trips a saved state", func() {
			finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			Expect(m.SaveBuildState(&dotdir.BuildState{
				BuildID:    "b-1",
				Table:      "fashion_items",
				Rows:       70,
				Records:    71,
				Missing:    1,
				FinishedAt: finished,
			}, tmpDir)).To(Succeed())

			state, err := m.LoadBuildState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state.BuildID).To(Equal("b-1"))
			Expect(state.Rows).To(Equal(70))
			Expect(state.Missing).To(Equal(1))
			Expect(state.FinishedAt.Equal(finished)).To(BeTrue())
		})

		It("rejects a nil state", func() {
			Expect(m.SaveBuildState(nil, tmpDir)).To(HaveOccurred())
		})

		It("clears the state and tolerates clearing twice", func() {
			Expect(m.SaveBuildState(&dotdir.BuildState{BuildID: "b-2"}, tmpDir)).To(Succeed())
			Expect(m.ClearBuildState(tmpDir)).To(Succeed())
			Expect(m.ClearBuildState(tmpDir)).To(Succeed())

			state, err := m.LoadBuildState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})
})
