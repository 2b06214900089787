// Package app builds cobra commands for long-running services whose options
// come from flags, a config file and the environment via viper.
package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kiosk404/agentcore/pkg/utils/cliflag"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CliOptions abstracts configuration options for reading parameters from the command line.
type CliOptions interface {
	Flags() (fss cliflag.NamedFlagSets)
	Validate() []error
}

// CompletableOptions fills defaults derived from other fields.
type CompletableOptions interface {
	Complete() error
}

// PrintableOptions prints the effective options.
type PrintableOptions interface {
	String() string
}

// RunFunc defines the application's startup callback function.
type RunFunc func(basename string) error

// Option defines optional parameters for initializing the application structure.
type Option func(*App)

// App is the main structure of a cli application.
type App struct {
	basename    string
	name        string
	description string
	options     CliOptions
	runFunc     RunFunc
	noConfig    bool
	args        cobra.PositionalArgs
	envPrefix   string
	cmd         *cobra.Command
}

func WithOptions(opt CliOptions) Option {
	return func(a *App) { a.options = opt }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithEnvPrefix sets the prefix viper uses when reading environment overrides.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) { a.envPrefix = prefix }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// NewApp creates a new application instance based on the given name, binary name, and other options.
func NewApp(name, basename string, opts ...Option) *App {
	a := &App{name: name, basename: basename}
	for _, o := range opts {
		o(a)
	}
	if a.envPrefix == "" {
		a.envPrefix = strings.ToUpper(strings.ReplaceAll(basename, "-", "_"))
	}
	a.buildCommand()
	return a
}

// Command exposes the root cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.basename,
		Short:         a.name,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true
	cmd.Flags().SetNormalizeFunc(cliflag.WordSepNormalizeFunc)

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		for _, name := range namedFlagSets.Order {
			cmd.Flags().AddFlagSet(namedFlagSets.FlagSets[name])
		}
	}
	if !a.noConfig {
		addConfigFlag(a.basename, a.envPrefix, namedFlagSets.FlagSet("global"))
		cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))
	}
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		fmt.Fprintf(cmd.OutOrStderr(), "Usage:\n  %s\n", cmd.UseLine())
		cliflag.PrintSections(cmd.OutOrStderr(), namedFlagSets)
		return nil
	})

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}
	a.cmd = cmd
}

// Run launches the application.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Printf("%v %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if !a.noConfig {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if err := viper.Unmarshal(a.options); err != nil {
			return err
		}
	}

	fmt.Printf("%v Starting %s ...\n", color.GreenString("==>"), a.name)
	if a.options != nil {
		if err := a.applyOptionRules(); err != nil {
			return err
		}
	}
	return a.runFunc(a.basename)
}

func (a *App) applyOptionRules() error {
	if completeable, ok := a.options.(CompletableOptions); ok {
		if err := completeable.Complete(); err != nil {
			return err
		}
	}
	if errs := a.options.Validate(); len(errs) != 0 {
		return errors.Join(errs...)
	}
	if printable, ok := a.options.(PrintableOptions); ok {
		fmt.Printf("%v Config: `%s`\n", color.GreenString("==>"), printable.String())
	}
	return nil
}
