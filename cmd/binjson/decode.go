package main

import (
	"bytes"
	"encoding/json"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
)

// decodeCommand converts a binary value back to JSON. Output is indented
// by default; member order is preserved either way.
type decodeCommand struct {
	file    *string
	out     *string
	compact *bool
}

func (cmd *decodeCommand) run(c *kingpin.ParseContext) error {
	data, err := readInput(*cmd.file)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	v, err := binjson.Decode(data)
	if err != nil {
		return errors.Wrap(err, "decode value")
	}

	js, err := binjson.ToJSON(v)
	if err != nil {
		return errors.Wrap(err, "convert to JSON")
	}

	if !*cmd.compact {
		// json.Indent keeps token order, unlike a map round trip.
		var buf bytes.Buffer
		if err := json.Indent(&buf, js, "", "  "); err != nil {
			return errors.Wrap(err, "indent JSON")
		}
		js = buf.Bytes()
	}
	js = append(js, '\n')

	return writeOutput(*cmd.out, js)
}

func addDecodeCommand(app *kingpin.Application) {
	cmd := &decodeCommand{}
	dec := app.Command("decode", "Decode a binary value to JSON.").Action(cmd.run)
	cmd.out = dec.Flag("out", "Output file (default stdout).").Short('o').String()
	cmd.compact = dec.Flag("compact", "Emit compact JSON without indentation.").Bool()
	cmd.file = dec.Arg("file", "Binary input file (default stdin).").String()
}
