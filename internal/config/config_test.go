package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/jsonfile/internal/config"
	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func Test_Load_Uses_Defaults_When_No_Config_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)

	require.Equal(t, dir, cfg.EffectiveCwd)
	require.Equal(t, dir, cfg.BaseDirAbs)
	require.Equal(t, jsonfile.FormatAuto, cfg.DefaultFmt)
	require.Equal(t, jsonfile.DefaultPolicy(), cfg.Policy)
	require.Equal(t, config.Sources{}, cfg.Sources)
	require.False(t, cfg.RegistryOptions().SkipDirSync)
}

// Test_Load_Layers_Global_Project_And_Flags verifies each layer only
// overrides the keys it sets.
func Test_Load_Layers_Global_Project_And_Flags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := t.TempDir()

	writeConfig(t, filepath.Join(xdg, "jsonfile", "config.json"), `{
		// global
		"base_dir": "global-data",
		"format": "compact",
		"max_uncommitted_changes": 10,
	}`)
	writeConfig(t, filepath.Join(dir, config.FileName), `{"max_uncommitted_time": "5s", "sync_dir": false}`)

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: dir,
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)

	want := jsonfile.CommitPolicy{MaxChanges: 10, MaxAge: 5 * time.Second}
	if diff := cmp.Diff(want, cfg.Policy); diff != "" {
		t.Fatalf("policy mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, filepath.Join(dir, "global-data"), cfg.BaseDirAbs)
	require.Equal(t, jsonfile.FormatCompact, cfg.DefaultFmt)
	require.True(t, cfg.RegistryOptions().SkipDirSync)
	require.Equal(t, filepath.Join(xdg, "jsonfile", "config.json"), cfg.Sources.Global)
	require.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)

	override := "/srv/data"

	cfg, err = config.Load(config.LoadInput{
		WorkDirOverride: dir,
		BaseDirOverride: &override,
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(override), cfg.BaseDirAbs)
}

func Test_Load_Explicit_Config_Replaces_Project_Config(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeConfig(t, filepath.Join(dir, config.FileName), `{"format": "compact"}`)
	writeConfig(t, filepath.Join(dir, "other.json"), `{"format": "binary"}`)

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: dir, ConfigPath: "other.json"})
	require.NoError(t, err)
	require.Equal(t, jsonfile.FormatBinary, cfg.DefaultFmt)
	require.Equal(t, filepath.Join(dir, "other.json"), cfg.Sources.Project)

	_, err = config.Load(config.LoadInput{WorkDirOverride: dir, ConfigPath: "missing.json"})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func Test_Load_Rejects_Invalid_Values(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":         `{"format": `,
		"format":         `{"format": "xml"}`,
		"duration":       `{"max_uncommitted_time": "soon"}`,
		"negative age":   `{"max_uncommitted_time": "-1s"}`,
		"empty base dir": `{"base_dir": ""}`,
	}

	for name, content := range cases {
		name, content := name, content
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, filepath.Join(dir, config.FileName), content)

			_, err := config.Load(config.LoadInput{WorkDirOverride: dir})
			require.ErrorIs(t, err, config.ErrConfigInvalid)
		})
	}
}

func Test_Load_Rejects_Empty_Base_Dir_Flag(t *testing.T) {
	t.Parallel()

	empty := ""

	_, err := config.Load(config.LoadInput{WorkDirOverride: t.TempDir(), BaseDirOverride: &empty})
	require.ErrorIs(t, err, config.ErrBaseDirEmpty)
}

func Test_Format_Renders_Serialized_Fields(t *testing.T) {
	t.Parallel()

	out, err := config.Format(config.Default())
	require.NoError(t, err)
	require.JSONEq(t, `{
		"base_dir": ".",
		"format": "auto",
		"max_uncommitted_changes": -1,
		"max_uncommitted_time": "1m0s",
		"sync_dir": true
	}`, out)
}
