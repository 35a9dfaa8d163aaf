// Package log builds the apex logger used by the jsonfile command.
package log

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvLevel names the environment variable holding the log level.
const EnvLevel = "JSONFILE_LOG"

// New returns a logger writing one line per entry to w, at the level named
// by JSONFILE_LOG in env (default "error"). An unknown level falls back to
// the default and is reported by the returned error.
func New(w io.Writer, env map[string]string) (*log.Logger, error) {
	name := strings.ToLower(strings.TrimSpace(env[EnvLevel]))
	if name == "" {
		name = "error"
	}

	level, err := log.ParseLevel(name)
	if err != nil {
		level = log.ErrorLevel
		err = fmt.Errorf("%s=%q: %w", EnvLevel, env[EnvLevel], err)
	}

	return &log.Logger{Handler: &Handler{w: w, now: time.Now}, Level: level}, err
}

// Handler writes "2006-01-02 15:04:05 L message key=value ..." lines.
type Handler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// HandleLog implements the log.Handler interface.
func (h *Handler) HandleLog(e *log.Entry) error {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder

	fmt.Fprintf(&b, "%s %.1s %s", h.now().Format("2006-01-02 15:04:05"), strings.ToUpper(e.Level.String()), e.Message)

	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, b.String())

	return err
}
