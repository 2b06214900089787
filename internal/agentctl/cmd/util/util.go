// Package util holds helpers shared by agentctl commands.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// IOStreams are the standard streams of a command.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// CheckErr prints a user-facing error and exits non-zero.
func CheckErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%v %v\n", color.RedString("Error:"), err)
	os.Exit(1)
}
