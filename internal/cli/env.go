// Package cli carries the loaded configuration and logger from the root
// command to its subcommands.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klytics/docbridge/internal/config"
	"github.com/klytics/docbridge/internal/formats/convert"
	"github.com/klytics/docbridge/internal/formats/docx"
	"github.com/klytics/docbridge/internal/logging"
	"github.com/klytics/docbridge/internal/output"
)

// Env is the per-invocation environment shared by all commands.
type Env struct {
	Config *config.Config
	Log    *zap.Logger
	JSON   bool
}

type envKey struct{}

// Setup loads the configuration, applies the global flags and stores the
// resulting Env in cmd's context. It runs before every subcommand.
func Setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	flags := cmd.Flags()
	jsonFlag, _ := flags.GetBool("json")
	verbose, _ := flags.GetBool("verbose")
	noColor, _ := flags.GetBool("no-color")

	if noColor || !cfg.Output.Color {
		color.NoColor = true
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Log.JSON)
	if err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, envKey{}, &Env{Config: cfg, Log: log, JSON: jsonFlag}))
	return nil
}

// From returns the Env stored by Setup, or a default one when Setup did not
// run.
func From(cmd *cobra.Command) *Env {
	if ctx := cmd.Context(); ctx != nil {
		if env, ok := ctx.Value(envKey{}).(*Env); ok {
			return env
		}
	}
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}
	jsonFlag, _ := cmd.Flags().GetBool("json")
	return &Env{Config: cfg, Log: zap.NewNop(), JSON: jsonFlag}
}

// ConvertOptions derives facade options from the configuration.
func (e *Env) ConvertOptions() convert.Options {
	return convert.Options{
		PreferNativeRead:  e.Config.Native.Read,
		PreferNativeWrite: e.Config.Native.Write,
		Standalone:        e.Config.Output.Standalone,
	}
}

// Converter returns a facade built from opts.
func (e *Env) Converter(opts convert.Options) *convert.Converter {
	return convert.New(opts, nil, e.Log)
}

// Fail reports err in the JSON envelope when --json is set and returns it
// unchanged otherwise.
func (e *Env) Fail(name string, err error, code int) error {
	if !e.JSON {
		return err
	}
	if encErr := output.PrintJSONError(name, err, code); encErr != nil {
		return encErr
	}
	return err
}

// PrintWarnings lists fidelity warnings as advisory lines.
func PrintWarnings(w io.Writer, warnings []docx.Warning) {
	for _, warn := range warnings {
		output.Warn(w, "%s", warn)
	}
}
