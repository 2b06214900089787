// Package invoke implements `agentctl invoke`.
package invoke

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	cmdutil "github.com/kiosk404/agentcore/internal/agentctl/cmd/util"
	"github.com/spf13/cobra"
)

type Options struct {
	Prompt  string
	Session string
	Actor   string
	Stream  bool
	Raw     bool

	client *cmdutil.Client
	cmdutil.IOStreams
}

var example = heredoc.Doc(`
	# Ask a one-off question
	agentctl invoke -p "list my s3 buckets"

	# Continue a conversation and watch tool calls as they happen
	agentctl invoke -s ops-1 --stream -p "now delete the empty ones"

	# Print the raw JSON response
	agentctl invoke -p "describe instance i-123" --raw`)

func NewOptions(streams cmdutil.IOStreams) *Options {
	return &Options{IOStreams: streams}
}

func NewCmdInvoke(f cmdutil.Factory, streams cmdutil.IOStreams) *cobra.Command {
	o := NewOptions(streams)
	cmd := &cobra.Command{
		Use:     "invoke",
		Short:   "Send a prompt to the agent",
		Long:    "Send a prompt to the agent and print its final answer. The prompt may also be given as arguments.",
		Example: example,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(f, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run()
		},
	}
	cmd.Flags().StringVarP(&o.Prompt, "prompt", "p", "", "Prompt to send.")
	cmd.Flags().StringVarP(&o.Session, "session", "s", "", "Session id to continue; the server picks one when empty.")
	cmd.Flags().StringVar(&o.Actor, "actor", "", "Actor id, honored only when the server runs without auth.")
	cmd.Flags().BoolVar(&o.Stream, "stream", false, "Stream tool steps as server-sent events.")
	cmd.Flags().BoolVar(&o.Raw, "raw", false, "Print the response as JSON instead of rendered markdown.")
	return cmd
}

func (o *Options) Complete(f cmdutil.Factory, args []string) error {
	if o.Prompt == "" && len(args) > 0 {
		o.Prompt = strings.Join(args, " ")
	}
	o.client = f.Client()
	return nil
}

func (o *Options) Validate() error {
	if strings.TrimSpace(o.Prompt) == "" {
		return fmt.Errorf("a prompt is required, use --prompt or pass it as arguments")
	}
	if o.Raw && o.Stream {
		return fmt.Errorf("--raw and --stream cannot be combined")
	}
	return nil
}

func (o *Options) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := cmdutil.InvokeRequest{Prompt: o.Prompt, SessionID: o.Session, ActorID: o.Actor}

	if o.Raw {
		_, raw, err := o.client.Invoke(ctx, req)
		if len(raw) > 0 {
			fmt.Fprintln(o.Out, strings.TrimSpace(string(raw)))
		}
		return err
	}

	var (
		resp *cmdutil.InvokeResponse
		err  error
	)
	if o.Stream {
		resp, err = o.client.InvokeStream(ctx, req, o.printStep)
	} else {
		resp, _, err = o.client.Invoke(ctx, req)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(o.Out, cmdutil.RenderMarkdown(resp.Result, cmdutil.TermWidth()-4))
	if session, ok := resp.Metadata["session_id"].(string); ok && session != "" {
		fmt.Fprintln(o.ErrOut, color.New(color.Faint).Sprintf("session: %s", session))
	}
	return nil
}

func (o *Options) printStep(s *cmdutil.Step) {
	status := color.GreenString("ok")
	if !s.Result.Success {
		status = color.RedString("failed")
		if s.Result.Error != nil {
			status = color.RedString("%s: %s", s.Result.Error.Kind, s.Result.Error.Message)
		}
	}
	fmt.Fprintf(o.ErrOut, "%s %s (%dms) %s\n",
		color.CyanString("→"), color.New(color.Bold).Sprint(s.Action.ToolName), s.Result.LatencyMs, status)
}
