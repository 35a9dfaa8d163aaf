package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

func catCmd(a *app) *Command {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Payload format: auto, indented, compact, binary (default from config)")
	output := fs.StringP("output", "o", outputJSON, "Output: json, compact, yaml")

	return &Command{
		Flags: fs,
		Usage: "cat [-f format] [-o json|compact|yaml] <path>",
		Short: "Print a document",
		Long: `Read a document once and print it.

An interrupted write is recovered first. A missing file prints {} and is
not created.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: cat takes exactly one path", ErrUsage)
			}

			reg, f, err := a.open(*format)
			if err != nil {
				return err
			}

			doc, err := jsonfile.Read[*structpb.Struct](reg, args[0], f)
			if err != nil {
				return err
			}

			text, err := render(doc.AsMap(), *output)
			if err != nil {
				return err
			}

			o.Println(text)

			return nil
		},
	}
}
