package main

import (
	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
)

// encodeCommand converts a JSON document to the binary encoding.
type encodeCommand struct {
	file *string
	out  *string
}

func (cmd *encodeCommand) run(c *kingpin.ParseContext) error {
	data, err := readInput(*cmd.file)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	v, err := binjson.FromJSON(data)
	if err != nil {
		return errors.Wrap(err, "parse JSON")
	}

	return writeOutput(*cmd.out, binjson.Encode(v))
}

func addEncodeCommand(app *kingpin.Application) {
	cmd := &encodeCommand{}
	enc := app.Command("encode", "Encode a JSON document as a binary value.").Action(cmd.run)
	cmd.out = enc.Flag("out", "Output file (default stdout).").Short('o').String()
	cmd.file = enc.Arg("file", "JSON input file (default stdin).").String()
}
