package util

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	FlagServer  = "server"
	FlagToken   = "token"
	FlagTimeout = "timeout"
	FlagConfig  = "config"
)

// AddGlobalFlags registers the connection flags shared by every command.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "Path to an agentctl config file (default $HOME/.agentctl.yaml).")
	fs.String(FlagServer, "http://127.0.0.1:8080", "Address of the agentcore server.")
	fs.String(FlagToken, "", "Bearer token sent to the server.")
	fs.Duration(FlagTimeout, 0, "Client-side request timeout, 0 means none.")
}

// Factory builds clients from the resolved global settings.
type Factory interface {
	Client() *Client
}

type factory struct{}

func NewDefaultFactory() Factory { return factory{} }

func (factory) Client() *Client {
	return NewClient(viper.GetString(FlagServer), viper.GetString(FlagToken), viper.GetDuration(FlagTimeout))
}

// TermWidth returns the width of stdout, 80 when it is not a terminal.
func TermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// RenderMarkdown renders content for the terminal, returning it unchanged on failure.
func RenderMarkdown(content string, width int) string {
	if width <= 0 {
		width = 76
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithColorProfile(termenv.ANSI256),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
