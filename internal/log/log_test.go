package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToErrorLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger, err := New(&buf, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, log.ErrorLevel, logger.Level)

	logger.Info("hidden")
	require.Empty(t, buf.String())
}

func TestNew_ReportsUnknownLevel(t *testing.T) {
	t.Parallel()

	logger, err := New(&bytes.Buffer{}, map[string]string{EnvLevel: "chatty"})
	require.Error(t, err)
	require.Equal(t, log.ErrorLevel, logger.Level)
}

func TestHandler_WritesSortedFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	h := &Handler{w: &buf, now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }}
	logger := &log.Logger{Handler: h, Level: log.DebugLevel}

	logger.WithFields(log.Fields{"path": "/a.json", "bytes": 12}).Debug("committed")

	require.Equal(t, "2024-05-01 12:00:00 D committed bytes=12 path=/a.json\n", buf.String())
}
