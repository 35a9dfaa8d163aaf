package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

func statusCmd(a *app) *Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	format := fs.StringP("format", "f", "", "Payload format used by --recover (default from config)")
	recoverFlag := fs.Bool("recover", false, "Restore an interrupted write and remove stale scratch files")

	return &Command{
		Flags: fs,
		Usage: "status [--recover] <path>",
		Short: "Show a file and its transient files",
		Long: `Show the committed file, its scratch file ($name.tmp) and its transaction
marker (name.transaction).

A marker means a write was interrupted; the next open restores it. With
--recover the restore happens now.`,
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: status takes exactly one path", ErrUsage)
			}

			reg, f, err := a.open(*format)
			if err != nil {
				return err
			}

			path, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			art, err := jsonfile.Inspect(reg.FS(), path)
			if err != nil {
				return err
			}

			if *recoverFlag && (art.Backup != nil || art.Temp != nil) {
				_, err = jsonfile.Read[*structpb.Struct](reg, path, f)
				if err != nil {
					return err
				}

				o.Println("recovered:", describeRecovery(art))

				art, err = jsonfile.Inspect(reg.FS(), path)
				if err != nil {
					return err
				}
			}

			printArtifacts(o, art)

			if art.Interrupted() {
				o.Warn("interrupted write at "+art.BackupPath, "run 'jsonfile status --recover "+args[0]+"' or open the file to restore it")
			}

			return nil
		},
	}
}

func describeRecovery(art jsonfile.Artifacts) string {
	if art.Backup != nil {
		return "restored " + art.BackupPath
	}

	return "removed " + art.TempPath
}

func printArtifacts(o *IO, art jsonfile.Artifacts) {
	o.Printf("%-8s %s\n", "path", describeFile(art.Path, art.Committed))
	o.Printf("%-8s %s\n", "scratch", describeFile(art.TempPath, art.Temp))
	o.Printf("%-8s %s\n", "marker", describeFile(art.BackupPath, art.Backup))
	o.Printf("%-8s %s\n", "state", artifactState(art))
}

func describeFile(path string, info os.FileInfo) string {
	if info == nil {
		return path + " (absent)"
	}

	return fmt.Sprintf("%s (%s, modified %s)", path, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
}

func artifactState(art jsonfile.Artifacts) string {
	switch {
	case art.Interrupted():
		return "interrupted"
	case art.Temp != nil:
		return "stale scratch file"
	case art.Committed == nil:
		return "missing"
	default:
		return "clean"
	}
}
