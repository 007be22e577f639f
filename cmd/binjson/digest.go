package main

import (
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
)

// digestCommand prints the canonical content digest of encoded value
// files. Equal values digest equally regardless of object member order.
type digestCommand struct {
	files *[]string
}

func (cmd *digestCommand) run(c *kingpin.ParseContext) error {
	for _, f := range *cmd.files {
		data, err := readInput(f)
		if err != nil {
			exitWithErr(errors.Wrap(err, "read input"))
		}
		v, err := binjson.Decode(data)
		if err != nil {
			exitWithErr(errors.Wrapf(err, "decode %s", f))
		}
		fmt.Printf("%s  %s\n", binjson.DigestHex(v), f)
	}
	return nil
}

func addDigestCommand(app *kingpin.Application) {
	cmd := &digestCommand{}
	dig := app.Command("digest", "Print canonical content digests.").Action(cmd.run)
	cmd.files = dig.Arg("file", "Encoded value files.").Required().ExistingFiles()
}
