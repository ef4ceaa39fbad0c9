package main

import (
	"github.com/BioHazard786/peerbeam/internal/cli/cmd"
	"github.com/BioHazard786/peerbeam/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
