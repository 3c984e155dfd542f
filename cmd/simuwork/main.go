package main

import (
	"os"

	"github.com/dotcommander/simuwork/internal/commands"
)

// version is set via ldflags: -X main.version=v1.0.0
var version = "dev"

func main() {
	os.Exit(commands.ExitCode(commands.Execute(version)))
}
