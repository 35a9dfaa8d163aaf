package jsonfile_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/benbjohnson/clock"

	"github.com/calvinalkan/jsonfile/pkg/fs"
	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

type settings struct {
	Theme string         `json:"theme"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags,omitempty"`
}

// env is an isolated registry over a temp dir with a recording filesystem,
// a mock clock, a memory log and a switchable owner id.
type env struct {
	dir    string
	reg    *jsonfile.Registry
	faulty *fs.Faulty
	clock  *clock.Mock
	logs   *memory.Handler
	owner  *atomic.Uint64
}

func newEnv(t *testing.T, mutate ...func(*jsonfile.Options)) *env {
	t.Helper()

	e := &env{
		dir:    t.TempDir(),
		faulty: fs.NewFaulty(fs.NewReal()),
		clock:  clock.NewMock(),
		logs:   memory.New(),
		owner:  &atomic.Uint64{},
	}

	e.owner.Store(1)

	opts := jsonfile.Options{
		BaseDir: e.dir,
		FS:      e.faulty,
		Logger:  &log.Logger{Handler: e.logs, Level: log.DebugLevel},
		Clock:   e.clock,
		Owner:   e.owner.Load,
	}

	for _, m := range mutate {
		m(&opts)
	}

	reg, err := jsonfile.NewRegistry(opts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	e.reg = reg

	return e
}

// fresh returns a second registry over the same directory, as a restarted
// process would see it.
func (e *env) fresh(t *testing.T) *jsonfile.Registry {
	t.Helper()

	reg, err := jsonfile.NewRegistry(jsonfile.Options{BaseDir: e.dir, Logger: log.Log})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	return reg
}

func (e *env) path(name string) string {
	return filepath.Join(e.dir, name)
}

func (e *env) messages() []string {
	out := make([]string, 0, len(e.logs.Entries))
	for _, entry := range e.logs.Entries {
		out = append(out, entry.Message)
	}

	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return string(data)
}

func exists(t *testing.T, path string) bool {
	t.Helper()

	_, err := os.Stat(path)
	if err == nil {
		return true
	}

	if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}

	return false
}

func mustOpen[T any](t *testing.T, reg *jsonfile.Registry, name string, f jsonfile.Format) *jsonfile.Handle[T] {
	t.Helper()

	h, err := jsonfile.Open[T](reg, name, f)
	if err != nil {
		t.Fatalf("Open %s: %v", name, err)
	}

	return h
}

func mustValue[T any](t *testing.T, h *jsonfile.Handle[T]) *T {
	t.Helper()

	v, err := h.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	return v
}
