package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"
)

func setCmd(a *app) *Command {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Payload format: auto, indented, compact, binary (default from config)")

	return &Command{
		Flags: fs,
		Usage: "set [-f format] <path> <key> <json>",
		Short: "Set a member of a document",
		Long: `Set the member at <key> to the JSON value <json> and save.

Keys are dotted paths; missing intermediate objects are created. The value
must be JSON, so strings need quotes: set app.json theme '"dark"'.
A missing file is created.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("%w: set takes <path> <key> <json>", ErrUsage)
			}

			path, key := args[0], args[1]

			value, err := parseValue(strings.Join(args[2:], " "))
			if err != nil {
				return err
			}

			return a.withDocument(path, *format, func(h *docHandle, doc *structpb.Struct) error {
				err := assign(doc, key, value)
				if err != nil {
					return err
				}

				err = h.IncrementChangeCount()
				if err != nil {
					return err
				}

				o.Printf("%s: set %s\n", h.Path(), key)

				return nil
			})
		},
	}
}

func delCmd(a *app) *Command {
	fs := flag.NewFlagSet("del", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Payload format: auto, indented, compact, binary (default from config)")

	return &Command{
		Flags: fs,
		Usage: "del [-f format] <path> <key>",
		Short: "Delete a member of a document",
		Long:  "Delete the member at the dotted <key> and save.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: del takes <path> <key>", ErrUsage)
			}

			path, key := args[0], args[1]

			return a.withDocument(path, *format, func(h *docHandle, doc *structpb.Struct) error {
				err := remove(doc, key)
				if err != nil {
					return err
				}

				err = h.IncrementChangeCount()
				if err != nil {
					return err
				}

				o.Printf("%s: deleted %s\n", h.Path(), key)

				return nil
			})
		},
	}
}
