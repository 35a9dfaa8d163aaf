package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one jsonfile subcommand: its flags, help text and action.
type Command struct {
	Flags *flag.FlagSet

	// Usage follows "jsonfile" in help output; its first word is the name.
	Usage string
	Short string

	// Long defaults to Short.
	Long string

	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

// HelpLine returns the short help line for the main usage display.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-22s %s", c.Usage, c.Short)
}

// PrintHelp prints the full help output for "jsonfile <cmd> --help".
func (c *Command) PrintHelp(o *IO) {
	c.printHelp(o.Println)
}

func (c *Command) printHelp(emit func(a ...any)) {
	emit("Usage: jsonfile", c.Usage)
	emit()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	emit(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		emit()
		emit("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		emit(strings.TrimSuffix(buf.String(), "\n"))
	}
}

// Run parses args and executes the command, returning the exit code.
// Parse and usage errors print the command help to stderr.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)
			return 0
		}
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.printHelp(o.ErrPrintln)

		return 1
	}

	err = c.Exec(ctx, o, c.Flags.Args())
	if err != nil {
		o.ErrPrintln("error:", err)

		if errors.Is(err, ErrUsage) {
			o.ErrPrintln()
			c.printHelp(o.ErrPrintln)
		}

		return 1
	}

	return 0
}
