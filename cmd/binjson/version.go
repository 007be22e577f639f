package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/Neumenon/binjson/stream"
)

type versionCommand struct{}

func (cmd *versionCommand) run(c *kingpin.ParseContext) error {
	fmt.Printf("binjson %s (bjs1 v%d)\n", version, stream.Version)
	return nil
}

func addVersionCommand(app *kingpin.Application) {
	cmd := &versionCommand{}
	app.Command("version", "Print version info.").Action(cmd.run)
}
