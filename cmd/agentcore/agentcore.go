package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kiosk404/agentcore/internal/agentcore"
)

func main() {
	agentcore.NewApp("agentcore").Run()
}
