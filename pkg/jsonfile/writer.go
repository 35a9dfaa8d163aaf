package jsonfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calvinalkan/jsonfile/pkg/fs"
)

// Suffixes of the transient files next to a committed file.
const (
	tempPrefix   = "$"
	tempSuffix   = ".tmp"
	backupSuffix = ".transaction"
)

// TempPath returns the scratch file used while writing path.
func TempPath(path string) string {
	dir, name := filepath.Split(path)

	return filepath.Join(dir, tempPrefix+name+tempSuffix)
}

// BackupPath returns the transaction marker used while replacing path.
func BackupPath(path string) string {
	return path + backupSuffix
}

// txWriter replaces the content of one file so that an interruption at any
// point leaves either the old or the new content recoverable.
//
// Protocol for a commit:
//
//  1. write the payload to the scratch file and sync it
//  2. if the committed file exists, rename it to the transaction marker
//  3. rename the scratch file to the committed path
//  4. remove the transaction marker
//
// recover runs before any load: an existing marker is renamed back over
// the committed path, whatever that path holds.
type txWriter struct {
	fs      fs.FS
	path    string
	tmpPath string
	bakPath string
	perm    os.FileMode
	syncDir bool
}

func newTxWriter(fsys fs.FS, path string, perm os.FileMode, syncDir bool) *txWriter {
	return &txWriter{
		fs:      fsys,
		path:    path,
		tmpPath: TempPath(path),
		bakPath: BackupPath(path),
		perm:    perm,
		syncDir: syncDir,
	}
}

// recover restores an interrupted transaction and removes a stale scratch
// file. It reports whether a marker was restored. It is idempotent.
func (w *txWriter) recover() (bool, error) {
	hasBackup, err := w.fs.Exists(w.bakPath)
	if err != nil {
		return false, fmt.Errorf("stat transaction marker: %w", err)
	}

	if hasBackup {
		err = w.fs.Rename(w.bakPath, w.path)
		if err != nil {
			return false, fmt.Errorf("restore transaction marker: %w", err)
		}

		err = w.syncParent()
		if err != nil {
			return true, err
		}
	}

	err = w.removeTemp()
	if err != nil {
		return hasBackup, err
	}

	return hasBackup, nil
}

// commit installs data as the new committed content.
func (w *txWriter) commit(data []byte) error {
	err := w.writeTemp(data)
	if err != nil {
		return err
	}

	existing, err := w.fs.Exists(w.path)
	if err != nil {
		return errors.Join(fmt.Errorf("stat %q: %w", w.path, err), w.removeTemp())
	}

	if !existing {
		err = w.fs.Rename(w.tmpPath, w.path)
		if err != nil {
			return errors.Join(fmt.Errorf("install: %w", err), w.removeTemp())
		}

		return w.syncParent()
	}

	err = w.fs.Rename(w.path, w.bakPath)
	if err != nil {
		return errors.Join(fmt.Errorf("move committed file to transaction marker: %w", err), w.removeTemp())
	}

	err = w.fs.Rename(w.tmpPath, w.path)
	if err != nil {
		// Put the old content back so a later first-write path cannot leave
		// an older marker behind to be restored.
		restoreErr := w.fs.Rename(w.bakPath, w.path)
		if restoreErr != nil {
			restoreErr = fmt.Errorf("restore transaction marker: %w", restoreErr)
		}

		return errors.Join(fmt.Errorf("install: %w", err), restoreErr, w.removeTemp())
	}

	err = w.syncParent()
	if err != nil {
		return err
	}

	err = w.fs.Remove(w.bakPath)
	if err != nil {
		return fmt.Errorf("remove transaction marker: %w", err)
	}

	return nil
}

func (w *txWriter) writeTemp(data []byte) error {
	file, err := w.fs.OpenFile(w.tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, w.perm)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}

	_, writeErr := file.Write(data)
	if writeErr == nil {
		writeErr = file.Sync()
	}

	closeErr := file.Close()

	if writeErr != nil {
		return errors.Join(fmt.Errorf("write scratch file %q: %w", w.tmpPath, writeErr), w.removeTemp())
	}

	if closeErr != nil {
		return errors.Join(fmt.Errorf("close scratch file %q: %w", w.tmpPath, closeErr), w.removeTemp())
	}

	return nil
}

func (w *txWriter) removeTemp() error {
	err := w.fs.Remove(w.tmpPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove scratch file %q: %w", w.tmpPath, err)
	}

	return nil
}

// syncParent makes the renames in the parent directory durable.
func (w *txWriter) syncParent() error {
	if !w.syncDir {
		return nil
	}

	dir := filepath.Dir(w.path)

	d, err := w.fs.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir %q: %w", dir, err)
	}

	syncErr := d.Sync()
	closeErr := d.Close()

	if syncErr != nil {
		return fmt.Errorf("sync dir %q: %w", dir, syncErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	return nil
}

// Artifacts describes the files that make up one cached path on disk.
// A nil FileInfo means the file does not exist.
type Artifacts struct {
	Path       string
	TempPath   string
	BackupPath string

	Committed os.FileInfo
	Temp      os.FileInfo
	Backup    os.FileInfo
}

// Interrupted reports whether a transaction marker is present, meaning the
// next open will restore it.
func (a Artifacts) Interrupted() bool {
	return a.Backup != nil
}

// Inspect reports which of path, its scratch file and its transaction
// marker exist. It never modifies anything.
func Inspect(fsys fs.FS, path string) (Artifacts, error) {
	a := Artifacts{
		Path:       path,
		TempPath:   TempPath(path),
		BackupPath: BackupPath(path),
	}

	var err error

	a.Committed, err = statOptional(fsys, a.Path)
	if err != nil {
		return Artifacts{}, err
	}

	a.Temp, err = statOptional(fsys, a.TempPath)
	if err != nil {
		return Artifacts{}, err
	}

	a.Backup, err = statOptional(fsys, a.BackupPath)
	if err != nil {
		return Artifacts{}, err
	}

	return a, nil
}

func statOptional(fsys fs.FS, path string) (os.FileInfo, error) {
	info, err := fsys.Stat(path)
	if err == nil {
		return info, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	return nil, fmt.Errorf("stat %q: %w", path, err)
}
