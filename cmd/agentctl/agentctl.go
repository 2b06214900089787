// agentctl is the command line client of agentcore.
package main

import (
	"github.com/kiosk404/agentcore/internal/agentctl/cmd"
	cmdutil "github.com/kiosk404/agentcore/internal/agentctl/cmd/util"
)

func main() {
	cmdutil.CheckErr(cmd.NewDefaultAgentCtlCommand().Execute())
}
