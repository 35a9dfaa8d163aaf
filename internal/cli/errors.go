package cli

import "errors"

// Errors returned by commands.
var (
	ErrUsage           = errors.New("invalid usage")
	ErrFlagRequiresArg = errors.New("flag requires an argument")
	ErrUnknownFlag     = errors.New("unknown flag")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrKeyNotFound     = errors.New("key not found")
	ErrNotObject       = errors.New("not an object")
	ErrInvalidValue    = errors.New("value must be JSON (quote strings)")
	ErrUnknownOutput   = errors.New("unknown output format")
)
