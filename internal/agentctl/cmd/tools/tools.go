// Package tools implements `agentctl tools`.
package tools

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/gosuri/uitable"
	cmdutil "github.com/kiosk404/agentcore/internal/agentctl/cmd/util"
	"github.com/spf13/cobra"
)

func NewCmdTools(f cmdutil.Factory, streams cmdutil.IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools the agent can call",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(newCmdList(f, streams))
	return cmd
}

func newCmdList(f cmdutil.Factory, streams cmdutil.IOStreams) *cobra.Command {
	var wide bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered tools",
		Example: heredoc.Doc(`
			# Show every tool with its policy action id
			agentctl tools list

			# Include descriptions
			agentctl tools list --wide`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := f.Client().ListTools(context.Background())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(streams.ErrOut, "No tools registered.")
				return nil
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.Wrap = true
			if wide {
				table.AddRow("NAME", "SOURCE", "ACTION ID", "DESCRIPTION")
			} else {
				table.AddRow("NAME", "SOURCE", "ACTION ID")
			}
			for _, t := range list {
				if wide {
					table.AddRow(t.Name, t.Source, t.ActionID, t.Description)
				} else {
					table.AddRow(t.Name, t.Source, t.ActionID)
				}
			}
			fmt.Fprintln(streams.Out, table)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wide, "wide", "w", false, "Show tool descriptions.")
	return cmd
}
