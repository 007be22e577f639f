// binjson - binary value codec CLI
//
// Usage:
//
//	binjson encode [--out f] [file.json]   Encode JSON as a binary value
//	binjson decode [--out f] [file.bin]    Decode a binary value to JSON
//	binjson inspect file.bin...            Print structure and size stats
//	binjson digest file.bin...             Print canonical content digests
//	binjson frames [--dict] [file]         Decode a frame stream and print
//	binjson store put|get|ls|rm ...        Operate on a value store
//	binjson version                        Print version info
//
// Commands that take an optional file argument read from stdin when the
// argument is missing or "-".
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

const version = "0.1.0"

func main() {
	app := kingpin.New("binjson", "Encode, decode, and inspect binary values.")
	app.HelpFlag.Short('h')

	addEncodeCommand(app)
	addDecodeCommand(app)
	addInspectCommand(app)
	addDigestCommand(app)
	addFramesCommand(app)
	addStoreCommands(app)
	addVersionCommand(app)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}

func exitWithErr(err error) {
	fmt.Fprintf(os.Stderr, "binjson: %v\n", err)
	os.Exit(1)
}

// readInput reads a file, or stdin for "" and "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// writeOutput writes to a file, or stdout for "" and "-".
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
