package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/jsonfile/internal/config"
)

func printConfigCmd(a *app) *Command {
	fs := flag.NewFlagSet("print-config", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the layered values as a config file")

	return &Command{
		Flags: fs,
		Usage: "print-config [--json]",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			if *asJSON {
				text, err := config.Format(a.cfg)
				if err != nil {
					return err
				}

				io.Println(text)

				return nil
			}

			return execPrintConfig(io, a)
		},
	}
}

func execPrintConfig(io *IO, a *app) error {
	cfg := a.cfg

	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("base_dir=" + cfg.BaseDirAbs)
	io.Println("format=" + cfg.DefaultFmt.String())
	io.Println(fmt.Sprintf("max_uncommitted_changes=%d", cfg.Policy.MaxChanges))
	io.Println("max_uncommitted_time=" + cfg.Policy.MaxAge.String())
	io.Println(fmt.Sprintf("sync_dir=%t", !cfg.RegistryOptions().SkipDirSync))

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
