package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/jsonfile/pkg/fs"
)

func TestFaulty_PassesThroughAndRecordsEvents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	faulty := fs.NewFaulty(fs.NewReal())

	f, err := faulty.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	if _, err := f.Write([]byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := faulty.Rename(path, path+".bak"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	want := []fs.Event{
		{Op: fs.OpOpenFile, Path: path},
		{Op: fs.OpFileWrite, Path: path},
		{Op: fs.OpFileClose, Path: path},
		{Op: fs.OpRename, Path: path, NewPath: path + ".bak"},
	}

	if diff := cmp.Diff(want, faulty.Events()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	if got := faulty.Count(fs.OpRename); got != 1 {
		t.Fatalf("Count(rename)=%d, want 1", got)
	}
}

func TestFaulty_ErrorFailpoint_FiresOnNthMatchOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}

	faulty := fs.NewFaulty(fs.NewReal(), fs.Failpoint{Op: fs.OpRemove, After: 2})

	if err := faulty.Remove(a); err != nil {
		t.Fatalf("first Remove: %v", err)
	}

	err := faulty.Remove(b)
	if !errors.Is(err, fs.ErrInjected) {
		t.Fatalf("second Remove: err=%v, want ErrInjected", err)
	}

	if _, statErr := os.Stat(b); statErr != nil {
		t.Fatalf("faulted Remove must not touch the file: %v", statErr)
	}

	if err := faulty.Remove(b); err != nil {
		t.Fatalf("third Remove: %v", err)
	}
}

func TestFaulty_PanicFailpoint_MatchesRenameDestination(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	faulty := fs.NewFaulty(fs.NewReal(), fs.Failpoint{Path: dst, Action: fs.FaultPanic})

	var got *fs.InterruptError

	func() {
		defer func() {
			r := recover()

			err, ok := r.(error)
			if !ok || !errors.As(err, &got) {
				t.Fatalf("recover()=%v, want *fs.InterruptError", r)
			}
		}()

		_ = faulty.Rename(src, dst)
	}()

	if got.Op != fs.OpRename || got.NewPath != dst || got.Seq != 1 {
		t.Fatalf("interrupt=%+v", got)
	}

	if _, err := os.Stat(src); err != nil {
		t.Fatalf("interrupted Rename must not run: %v", err)
	}
}

func TestFaulty_CallFailpoint_RunsBeforeOperationAndProceeds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var srcExisted bool

	faulty := fs.NewFaulty(fs.NewReal(), fs.Failpoint{
		Op:     fs.OpRename,
		Action: fs.FaultCall,
		Call: func() {
			_, err := os.Stat(src)
			srcExisted = err == nil
		},
	})

	if err := faulty.Rename(src, dst); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if !srcExisted {
		t.Fatal("Call must run before the rename")
	}

	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("Rename must proceed after Call: %v", err)
	}
}
