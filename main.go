package main

import (
	"os"

	"github.com/eegstream/eegstream-go/cmd"
	"github.com/eegstream/eegstream-go/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	info := buildinfo.NewContext(version, buildDate, "")
	if err := cmd.RootCommand(info).Execute(); err != nil {
		os.Exit(1)
	}
}
