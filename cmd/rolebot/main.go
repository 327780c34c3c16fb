// Command rolebot is a Discord bot that lets guild members manage their own
// roles.
package main

import (
	"os"

	"github.com/jholhewres/rolebot/cmd/rolebot/commands"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := commands.NewRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
