package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

func migrateCmd(a *app) *Command {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Current payload format (default from config)")
	to := fs.String("to", "", "Target payload format: indented, compact, binary")

	return &Command{
		Flags: fs,
		Usage: "migrate --to <format> [-f format] <path>",
		Short: "Rewrite a document in another format",
		Long: `Rewrite a document in another payload format.

The file keeps its name; a later open must name the new format explicitly
unless the extension implies it.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: migrate takes exactly one path", ErrUsage)
			}

			if *to == "" {
				return fmt.Errorf("%w: --to is required", ErrUsage)
			}

			target, err := jsonfile.ParseFormat(*to)
			if err != nil {
				return err
			}

			return a.withDocument(args[0], *format, func(h *docHandle, _ *structpb.Struct) error {
				from := h.Format()

				err := h.MigrateToFormat(target)
				if err != nil {
					return err
				}

				o.Printf("%s: migrated from %s to %s\n", h.Path(), from, target)

				return nil
			})
		},
	}
}
