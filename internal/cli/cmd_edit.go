package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

// prompter reads REPL lines. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// scanPrompter reads lines from a non-terminal input.
type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		err := p.sc.Err()
		if err == nil {
			err = io.EOF
		}

		return "", err
	}

	return p.sc.Text(), nil
}

func (p *scanPrompter) AppendHistory(string) {}

func (p *scanPrompter) Close() error { return nil }

var editCommands = []string{"show", "get", "set", "del", "save", "changes", "discard", "help", "quit", "exit"}

func (a *app) prompter() prompter {
	if f, ok := a.in.(*os.File); ok && f == os.Stdin && liner.TerminalSupported() {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(func(line string) []string {
			var out []string

			for _, c := range editCommands {
				if strings.HasPrefix(c, strings.ToLower(line)) {
					out = append(out, c)
				}
			}

			return out
		})

		return state
	}

	in := a.in
	if in == nil {
		in = strings.NewReader("")
	}

	return &scanPrompter{sc: bufio.NewScanner(in)}
}

func editCmd(a *app) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Payload format: auto, indented, compact, binary (default from config)")
	maxChanges := fs.Int64("max-changes", 0, "Save after this many changes; negative disables (default from config)")
	maxAge := fs.Duration("max-age", 0, "Save when the oldest unsaved change is older than this; 0 disables (default from config)")

	return &Command{
		Flags: fs,
		Usage: "edit [-f format] [--max-changes N] [--max-age D] <path>",
		Short: "Edit a document interactively",
		Long: `Open a document and edit it from a prompt.

Every change is counted; the document is saved when the commit policy
says so, on 'save', and on exit. 'discard' drops unsaved changes.
Type 'help' at the prompt for commands.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: edit takes exactly one path", ErrUsage)
			}

			reg, f, err := a.open(*format)
			if err != nil {
				return err
			}

			h, err := jsonfile.Open[*structpb.Struct](reg, args[0], f)
			if err != nil {
				return err
			}

			if fs.Changed("max-changes") {
				h.SetMaxUncommittedChanges(*maxChanges)
			}

			if fs.Changed("max-age") {
				h.SetMaxUncommittedTime(*maxAge)
			}

			p := a.prompter()
			defer p.Close()

			s := &session{h: h, o: o}

			return s.loop(ctx, p)
		},
	}
}

// session is one edit REPL over an open handle.
type session struct {
	h         *docHandle
	o         *IO
	discarded bool
}

func (s *session) loop(ctx context.Context, p prompter) error {
	for ctx.Err() == nil {
		line, err := p.Prompt("jsonfile> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			break
		}

		if err != nil {
			return errors.Join(err, s.close())
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		done, err := s.exec(line)
		if err != nil {
			s.o.Println("error:", err)

			continue
		}

		if done {
			break
		}
	}

	return s.close()
}

func (s *session) close() error {
	if s.discarded {
		return nil
	}

	return s.h.Close()
}

func (s *session) doc() (*structpb.Struct, error) {
	v, err := s.h.Value()
	if err != nil {
		return nil, err
	}

	return *v, nil
}

// exec runs one REPL line and reports whether the session is over.
func (s *session) exec(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "show":
		doc, err := s.doc()
		if err != nil {
			return false, err
		}

		return false, s.print(doc.AsMap())

	case "get":
		doc, err := s.doc()
		if err != nil {
			return false, err
		}

		v, err := lookup(doc, rest)
		if err != nil {
			return false, err
		}

		return false, s.print(v.AsInterface())

	case "set":
		key, text, ok := strings.Cut(rest, " ")
		if !ok {
			return false, fmt.Errorf("%w: set <key> <json>", ErrUsage)
		}

		value, err := parseValue(strings.TrimSpace(text))
		if err != nil {
			return false, err
		}

		doc, err := s.doc()
		if err != nil {
			return false, err
		}

		err = assign(doc, key, value)
		if err != nil {
			return false, err
		}

		return false, s.changed()

	case "del":
		doc, err := s.doc()
		if err != nil {
			return false, err
		}

		err = remove(doc, rest)
		if err != nil {
			return false, err
		}

		return false, s.changed()

	case "save":
		err := s.h.Save()
		if err != nil {
			return false, err
		}

		s.o.Println("saved")

		return false, nil

	case "changes":
		s.o.Printf("%d unsaved changes (%s)\n", s.h.ChangeCount(), s.h.State())

		return false, nil

	case "discard":
		err := s.h.DiscardAll()
		if err != nil {
			return false, err
		}

		s.discarded = true
		s.o.Println("discarded unsaved changes")

		return true, nil

	case "help":
		s.o.Println(editHelp(s.h.Policy()))

		return false, nil

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

func (s *session) changed() error {
	saved, err := s.h.IncrementChangeCountAndMaybeSave()
	if err != nil {
		return err
	}

	if saved {
		s.o.Println("ok (saved)")
	} else {
		s.o.Printf("ok (%d unsaved)\n", s.h.ChangeCount())
	}

	return nil
}

func (s *session) print(v any) error {
	text, err := render(v, outputJSON)
	if err != nil {
		return err
	}

	s.o.Println(text)

	return nil
}

func editHelp(p jsonfile.CommitPolicy) string {
	changes := "off"
	if p.MaxChanges >= 0 {
		changes = fmt.Sprint(p.MaxChanges)
	}

	age := "off"
	if p.MaxAge > 0 {
		age = p.MaxAge.Round(time.Millisecond).String()
	}

	return fmt.Sprintf(`Commands:
  show               Print the document
  get <key>          Print the member at a dotted key
  set <key> <json>   Set a member
  del <key>          Delete a member
  save               Save now
  changes            Show the unsaved change count
  discard            Drop unsaved changes and exit
  quit               Save and exit

Auto-save: after %s changes, or when a change is older than %s.`, changes, age)
}
