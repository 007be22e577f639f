package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
)

// inspectCommand prints structure and size stats for encoded value files.
type inspectCommand struct {
	files   *[]string
	noColor *bool
}

// valueStats accumulates counts over one value tree.
type valueStats struct {
	nodes       int
	perKind     [8]int
	maxDepth    int
	stringBytes uint64
	blobBytes   uint64
}

func (cmd *inspectCommand) run(c *kingpin.ParseContext) error {
	if *cmd.noColor {
		color.NoColor = true
	}
	for _, f := range *cmd.files {
		cmd.printFile(f)
	}
	return nil
}

func (cmd *inspectCommand) printFile(name string) {
	data, err := readInput(name)
	if err != nil {
		exitWithErr(errors.Wrap(err, "read input"))
	}
	v, err := binjson.Decode(data)
	if err != nil {
		exitWithErr(errors.Wrapf(err, "decode %s", name))
	}

	var stats valueStats
	walkValue(v, 1, &stats)

	bold := color.New(color.Bold)
	bold.Printf("%s:\n", name)
	fmt.Printf(
		"\tkind: %s, encoded size: %v, depth: %d, nodes: %d\n",
		v.Kind(),
		humanize.Bytes(uint64(len(data))),
		stats.maxDepth,
		stats.nodes,
	)
	fmt.Printf(
		"\tnull: %d, bool: %d, int: %d, float: %d, string: %d (%v), blob: %d (%v), array: %d, object: %d\n",
		stats.perKind[binjson.KindNull],
		stats.perKind[binjson.KindBool],
		stats.perKind[binjson.KindInt],
		stats.perKind[binjson.KindFloat],
		stats.perKind[binjson.KindString],
		humanize.Bytes(stats.stringBytes),
		stats.perKind[binjson.KindBlob],
		humanize.Bytes(stats.blobBytes),
		stats.perKind[binjson.KindArray],
		stats.perKind[binjson.KindObject],
	)
	fmt.Printf("\tdigest: %s\n", binjson.DigestHex(v))

	if v.Kind() == binjson.KindObject {
		keys := v.Keys()
		if len(keys) > 16 {
			keys = append(keys[:16], "...")
		}
		fmt.Printf("\ttop-level keys: %s\n", strings.Join(keys, ", "))
	}
}

func walkValue(v *binjson.Value, depth int, stats *valueStats) {
	stats.nodes++
	stats.perKind[v.Kind()]++
	if depth > stats.maxDepth {
		stats.maxDepth = depth
	}

	switch v.Kind() {
	case binjson.KindString:
		s, _ := v.AsStr()
		stats.stringBytes += uint64(len(s))
	case binjson.KindBlob:
		b, _ := v.AsBlob()
		stats.blobBytes += uint64(len(b))
	case binjson.KindArray:
		elems, _ := v.AsArray()
		for _, e := range elems {
			walkValue(e, depth+1, stats)
		}
	case binjson.KindObject:
		members, _ := v.AsObject()
		for _, m := range members {
			walkValue(m.Value, depth+1, stats)
		}
	}
}

func addInspectCommand(app *kingpin.Application) {
	cmd := &inspectCommand{}
	ins := app.Command("inspect", "Print structure and size stats for encoded values.").Action(cmd.run)
	cmd.noColor = ins.Flag("no-color", "Disable colored output.").Bool()
	cmd.files = ins.Arg("file", "Encoded value files.").Required().ExistingFiles()
}
