package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/calvinalkan/jsonfile/internal/config"
	jlog "github.com/calvinalkan/jsonfile/internal/log"
)

const (
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

// Run is the main entry point. Returns exit code.
//
// sigCh may be nil. A signal cancels the command's context; the edit REPL
// then stops at the next prompt and saves.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	if len(args) < 2 {
		printUsage(out, nil)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, nil)

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == "-h" || flags.remaining[0] == helpFlag {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		BaseDirOverride: flags.baseDir,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	o := NewIO(out, errOut)

	logger, err := jlog.New(errOut, env)
	if err != nil {
		o.Warn(err.Error(), "use one of debug, info, warn, error, fatal")
	}

	a := &app{cfg: cfg, log: logger, in: in}
	commands := a.commands()

	name := flags.remaining[0]

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}

		code := cmd.Run(ctx, o, flags.remaining[1:])
		if code != 0 {
			return code
		}

		return o.Finish()
	}

	fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
	fprintln(errOut)
	printUsage(errOut, commands)

	return 1
}

type globalFlags struct {
	workDir    string
	configPath string
	baseDir    *string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	value, consumed, ok, err := flagValue(args, idx, "-C", "--cwd")
	if ok || err != nil {
		flags.workDir = value

		return consumed, err
	}

	value, consumed, ok, err = flagValue(args, idx, "-c", "--config")
	if ok || err != nil {
		flags.configPath = value

		return consumed, err
	}

	value, consumed, ok, err = flagValue(args, idx, "", "--base-dir")
	if ok || err != nil {
		flags.baseDir = &value

		return consumed, err
	}

	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", ErrUnknownFlag, arg)
	}

	return consumedNone, nil
}

// flagValue matches "-s v", "-sv", "--long v" and "--long=v".
func flagValue(args []string, idx int, short, long string) (string, int, bool, error) {
	arg := args[idx]

	if arg == long || (short != "" && arg == short) {
		if idx+1 >= len(args) {
			return "", consumedNone, false, fmt.Errorf("%w: %s", ErrFlagRequiresArg, arg)
		}

		return args[idx+1], consumedTwo, true, nil
	}

	if after, ok := strings.CutPrefix(arg, long+"="); ok {
		return after, consumedOne, true, nil
	}

	if short != "" {
		if after, ok := strings.CutPrefix(arg, short); ok && after != "" {
			return after, consumedOne, true, nil
		}
	}

	return "", consumedNone, false, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	if commands == nil {
		commands = (&app{}).commands()
	}

	fprintln(w, `jsonfile - inspect and edit crash-safe JSON cache files

Usage: jsonfile [global flags] <command> [args]

Global flags:
  -C, --cwd <dir>        Run as if started in <dir>
  -c, --config <file>    Use specified config file
      --base-dir <dir>   Resolve relative paths against <dir>
  -h, --help             Show help

Commands:`)

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w, `
Environment:
  JSONFILE_LOG           Log level (debug, info, warn, error)`)
}
