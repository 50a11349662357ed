package main

import (
	"os"

	"github.com/G-Research/timingscan/cmd/timingscan/cmd"
	"github.com/G-Research/timingscan/internal/common"
)

// Config is handled by cmd/params.go
func main() {
	common.ConfigureCommandLineLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
