package jsonfile_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/jsonfile/pkg/fs"
	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

// Test_Open_Shares_One_Value_When_Path_Opened_Twice verifies that handles on
// the same path wrap one value: a mutation through one is visible through
// the other without any save.
func Test_Open_Shares_One_Value_When_Path_Opened_Twice(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h1 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	h2 := mustOpen[settings](t, e.reg, e.path("./sub/../s.json"), jsonfile.FormatAuto)

	v1 := mustValue(t, h1)
	v2 := mustValue(t, h2)

	require.Same(t, v1, v2)

	v1.Theme = "dark"
	require.Equal(t, "dark", mustValue(t, h2).Theme)

	refs, ok := jsonfile.RefCountForTesting(e.reg, "s.json")
	require.True(t, ok)
	require.Equal(t, 2, refs)
	require.Equal(t, 1, e.reg.Len())

	require.NoError(t, h1.Close())
	require.NoError(t, h2.Close())
}

// Test_Open_Reloads_From_Disk_When_All_Handles_Closed verifies the entry is
// evicted on the 1→0 transition and the next Open constructs a new one.
func Test_Open_Reloads_From_Disk_When_All_Handles_Closed(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h1 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	h2 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)

	require.Equal(t, int64(1), e.reg.Stats().Loads)

	mustValue(t, h1).Count = 7

	require.NoError(t, h1.Close())

	refs, ok := jsonfile.RefCountForTesting(e.reg, "s.json")
	require.True(t, ok)
	require.Equal(t, 1, refs)

	require.NoError(t, h2.Close())
	require.Equal(t, 0, e.reg.Len())
	require.Equal(t, jsonfile.StateReleased, h2.State())

	h3 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	defer h3.Close()

	stats := e.reg.Stats()
	require.Equal(t, int64(2), stats.Loads)
	require.Equal(t, int64(1), stats.Evictions)

	// The final save of the last Close persisted the change.
	require.Equal(t, 7, mustValue(t, h3).Count)
}

// Test_Open_Creates_Default_File_When_Path_Missing verifies that Open
// materializes the default value on disk right away.
func Test_Open_Creates_Default_File_When_Path_Missing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h := mustOpen[map[string]int](t, e.reg, "counts.json", jsonfile.FormatAuto)
	defer h.Close()

	require.NotNil(t, *mustValue(t, h))
	require.Equal(t, "{}", readFile(t, e.path("counts.json")))
	require.Contains(t, e.messages(), "created default file")
}

// Test_Read_Returns_Default_Without_Creating_File_When_Path_Missing verifies
// the one-shot read leaves nothing on disk and registers nothing.
func Test_Read_Returns_Default_Without_Creating_File_When_Path_Missing(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	got, err := jsonfile.Read[[]string](e.reg, "list.json", jsonfile.FormatAuto)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)

	require.False(t, exists(t, e.path("list.json")))
	require.Equal(t, 0, e.reg.Len())
	require.Zero(t, e.faulty.Count(fs.OpRename))
}

func Test_Read_Returns_Committed_Content_When_File_Exists(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	writeFile(t, e.path("s.json"), `{"theme":"light","count":3}`)

	got, err := jsonfile.Read[settings](e.reg, "s.json", jsonfile.FormatAuto)
	require.NoError(t, err)

	if diff := cmp.Diff(settings{Theme: "light", Count: 3}, got); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
}

// Test_Open_Fails_With_ErrOwnership_When_Called_From_Other_Goroutine uses a
// real second goroutine and the runtime goroutine id.
func Test_Open_Fails_With_ErrOwnership_When_Called_From_Other_Goroutine(t *testing.T) {
	t.Parallel()

	reg, err := jsonfile.NewRegistry(jsonfile.Options{BaseDir: t.TempDir()})
	require.NoError(t, err)

	h, err := jsonfile.Open[settings](reg, "s.json", jsonfile.FormatAuto)
	require.NoError(t, err)

	mustValue(t, h).Theme = "mine"

	errs := make(chan error, 5)

	go func() {
		_, openErr := jsonfile.Open[settings](reg, "s.json", jsonfile.FormatAuto)
		errs <- openErr

		_, valueErr := h.Value()
		errs <- valueErr

		errs <- h.Set(settings{Theme: "theirs"})
		errs <- h.Save()
		errs <- h.Close()
	}()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, <-errs, jsonfile.ErrOwnership)
	}

	// Nothing changed on the owner's side.
	require.Equal(t, "mine", mustValue(t, h).Theme)

	refs, ok := jsonfile.RefCountForTesting(reg, "s.json")
	require.True(t, ok)
	require.Equal(t, 1, refs)

	require.NoError(t, h.Close())
}

// Test_Ownership_Is_Checked_Before_Disposal verifies a closed handle used
// from another goroutine reports the ownership violation.
func Test_Ownership_Is_Checked_Before_Disposal(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	require.NoError(t, h.Close())

	_, err := h.Value()
	require.ErrorIs(t, err, jsonfile.ErrDisposed)

	e.owner.Store(2)

	_, err = h.Value()
	require.ErrorIs(t, err, jsonfile.ErrOwnership)
}

func Test_Open_Fails_With_ErrTypeMismatch_When_Path_Open_As_Other_Type(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	defer h.Close()

	_, err := jsonfile.Open[map[string]any](e.reg, "s.json", jsonfile.FormatAuto)
	require.ErrorIs(t, err, jsonfile.ErrTypeMismatch)

	refs, _ := jsonfile.RefCountForTesting(e.reg, "s.json")
	require.Equal(t, 1, refs)
}

// Test_Open_Fails_With_ErrDecode_When_File_Is_Corrupt verifies a corrupt
// file fails the open, is left as-is and registers nothing.
func Test_Open_Fails_With_ErrDecode_When_File_Is_Corrupt(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	writeFile(t, e.path("s.json"), `{"theme": `)

	_, err := jsonfile.Open[settings](e.reg, "s.json", jsonfile.FormatAuto)
	require.ErrorIs(t, err, jsonfile.ErrDecode)
	require.Contains(t, err.Error(), e.path("s.json"))

	_, err = jsonfile.Read[settings](e.reg, "s.json", jsonfile.FormatAuto)
	require.ErrorIs(t, err, jsonfile.ErrDecode)

	require.Equal(t, `{"theme": `, readFile(t, e.path("s.json")))
	require.Equal(t, 0, e.reg.Len())
}

// Test_Close_Evicts_Entry_When_Final_Save_Fails verifies the error of the
// final save is returned and the registry does not keep the entry.
func Test_Close_Evicts_Entry_When_Final_Save_Fails(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	mustValue(t, h).Theme = "lost"

	e.faulty.Arm(fs.Failpoint{Op: fs.OpRename})

	err := h.Close()
	require.ErrorIs(t, err, fs.ErrInjected)
	require.Equal(t, 0, e.reg.Len())
	require.Equal(t, jsonfile.StateReleased, h.State())

	// The failed transaction left no transient files behind.
	require.False(t, exists(t, jsonfile.TempPath(e.path("s.json"))))
	require.False(t, exists(t, jsonfile.BackupPath(e.path("s.json"))))
	require.NotContains(t, readFile(t, e.path("s.json")), "lost")
}

func Test_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h1 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)
	h2 := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)

	require.NoError(t, h1.Close())
	require.NoError(t, h1.Close())

	// A double close must not release h2's reference.
	refs, ok := jsonfile.RefCountForTesting(e.reg, "s.json")
	require.True(t, ok)
	require.Equal(t, 1, refs)

	require.NoError(t, h2.Close())
}

// Test_WriteFile_Fails_With_ErrOpen_When_Path_Is_Live verifies a one-shot
// write cannot race a cached entry that would overwrite it on its next save.
func Test_WriteFile_Fails_With_ErrOpen_When_Path_Is_Live(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h := mustOpen[settings](t, e.reg, "s.json", jsonfile.FormatAuto)

	err := jsonfile.WriteFile(e.reg, "s.json", jsonfile.FormatAuto, settings{Theme: "x"})
	require.ErrorIs(t, err, jsonfile.ErrOpen)

	require.NoError(t, h.Close())

	err = jsonfile.WriteFile(e.reg, "s.json", jsonfile.FormatCompact, settings{Theme: "x"})
	require.NoError(t, err)
	require.Equal(t, `{"theme":"x","count":0}`, readFile(t, e.path("s.json")))
}

func Test_OpenType_Uses_Type_Derived_Name(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	h, err := jsonfile.OpenType[[]settings](e.reg)
	require.NoError(t, err)

	*mustValue(t, h) = append(*mustValue(t, h), settings{Theme: "a"})
	require.NoError(t, h.Close())

	name := jsonfile.TypePath[[]settings](jsonfile.FormatIndented)
	require.True(t, strings.HasPrefix(name, "List("), name)
	require.True(t, exists(t, e.path(name)))

	got, err := jsonfile.ReadType[[]settings](e.reg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Theme)
}

func Test_NewRegistry_Creates_Base_Dir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")

	reg, err := jsonfile.NewRegistry(jsonfile.Options{BaseDir: dir})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	abs, err := reg.Resolve("x.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "x.json"), abs)
}

func Test_Open_Fails_When_Path_Is_Empty(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := jsonfile.Open[settings](e.reg, "", jsonfile.FormatAuto)
	require.Error(t, err)
	require.False(t, errors.Is(err, jsonfile.ErrDecode))
}

// Test_NewRegistry_Discards_Logs_When_No_Logger_Given verifies library use
// stays silent unless a logger is passed in.
func Test_NewRegistry_Discards_Logs_When_No_Logger_Given(t *testing.T) {
	t.Parallel()

	reg, err := jsonfile.NewRegistry(jsonfile.Options{BaseDir: t.TempDir()})
	require.NoError(t, err)

	logger, ok := jsonfile.LoggerForTesting(reg).(*log.Logger)
	require.True(t, ok)
	require.Equal(t, discard.Default, logger.Handler)
}

func Test_Default_Owner_Is_Stable_Per_Goroutine(t *testing.T) {
	t.Parallel()

	id := jsonfile.GoroutineIDForTesting()
	require.NotZero(t, id)
	require.Equal(t, id, jsonfile.GoroutineIDForTesting())

	other := make(chan uint64)

	go func() { other <- jsonfile.GoroutineIDForTesting() }()

	require.NotEqual(t, id, <-other)
}
