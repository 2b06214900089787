// Package cmd builds the agentctl command tree.
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/kiosk404/agentcore/internal/agentctl/cmd/invoke"
	"github.com/kiosk404/agentcore/internal/agentctl/cmd/policy"
	"github.com/kiosk404/agentcore/internal/agentctl/cmd/tools"
	cmdutil "github.com/kiosk404/agentcore/internal/agentctl/cmd/util"
	"github.com/kiosk404/agentcore/pkg/utils/cliflag"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "AGENTCTL"

// NewDefaultAgentCtlCommand creates the `agentctl` command with default arguments.
func NewDefaultAgentCtlCommand() *cobra.Command {
	return NewAgentCtlCommand(os.Stdin, os.Stdout, os.Stderr)
}

func NewAgentCtlCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	cmds := &cobra.Command{
		Use:   "agentctl",
		Short: "agentctl talks to an agentcore server",
		Long: heredoc.Doc(`
			agentctl is the command line client of agentcore.

			It sends prompts to the agent, lists the tools the agent may call and
			checks policy rule files before they are deployed.

			Connection settings are read from flags, from AGENTCTL_* environment
			variables and from $HOME/.agentctl.yaml, in that order.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := cmds.PersistentFlags()
	flags.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	cmdutil.AddGlobalFlags(flags)

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.OnInitialize(func() {
		loadConfig(viper.GetString(cmdutil.FlagConfig))
	})

	streams := cmdutil.IOStreams{In: in, Out: out, ErrOut: errOut}
	f := cmdutil.NewDefaultFactory()

	cmds.AddCommand(invoke.NewCmdInvoke(f, streams))
	cmds.AddCommand(tools.NewCmdTools(f, streams))
	cmds.AddCommand(policy.NewCmdPolicy(streams))
	return cmds
}

func loadConfig(cfg string) {
	if cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(filepath.Join(".", "conf"))
		viper.SetConfigName(".agentctl")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfg == "" {
			return
		}
		fmt.Fprintf(os.Stderr, "%v failed to read configuration file(%s): %v\n", color.RedString("Error:"), cfg, err)
		os.Exit(1)
	}
}
