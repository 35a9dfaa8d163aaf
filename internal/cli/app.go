package cli

import (
	"fmt"
	"io"

	"github.com/apex/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/calvinalkan/jsonfile/internal/config"
	"github.com/calvinalkan/jsonfile/pkg/jsonfile"
)

// app carries what commands share: the resolved configuration, the logger
// and the registry, which is built on first use.
type app struct {
	cfg config.Config
	log log.Interface
	in  io.Reader
	reg *jsonfile.Registry
}

func (a *app) commands() []*Command {
	return []*Command{
		catCmd(a),
		setCmd(a),
		delCmd(a),
		migrateCmd(a),
		statusCmd(a),
		editCmd(a),
		printConfigCmd(a),
	}
}

func (a *app) registry() (*jsonfile.Registry, error) {
	if a.reg != nil {
		return a.reg, nil
	}

	opts := a.cfg.RegistryOptions()
	opts.Logger = a.log

	reg, err := jsonfile.NewRegistry(opts)
	if err != nil {
		return nil, err
	}

	a.reg = reg

	return reg, nil
}

// format returns the -f flag value, or the configured default when unset.
func (a *app) format(flagValue string) (jsonfile.Format, error) {
	if flagValue == "" {
		return a.cfg.DefaultFmt, nil
	}

	return jsonfile.ParseFormat(flagValue)
}

type docHandle = jsonfile.Handle[*structpb.Struct]

// withDocument opens path, runs fn on the document and closes the handle,
// which saves the document if fn changed it.
func (a *app) withDocument(path, formatFlag string, fn func(h *docHandle, doc *structpb.Struct) error) error {
	reg, format, err := a.open(formatFlag)
	if err != nil {
		return err
	}

	h, err := jsonfile.Open[*structpb.Struct](reg, path, format)
	if err != nil {
		return err
	}

	doc, err := h.Value()
	if err != nil {
		return err
	}

	fnErr := fn(h, *doc)

	closeErr := h.Close()
	if closeErr != nil {
		return fmt.Errorf("save %s: %w", h.Path(), closeErr)
	}

	return fnErr
}

func (a *app) open(formatFlag string) (*jsonfile.Registry, jsonfile.Format, error) {
	format, err := a.format(formatFlag)
	if err != nil {
		return nil, 0, err
	}

	reg, err := a.registry()
	if err != nil {
		return nil, 0, err
	}

	return reg, format, nil
}
