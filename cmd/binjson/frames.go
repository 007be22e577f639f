package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"github.com/Neumenon/binjson/binjson"
	"github.com/Neumenon/binjson/stream"
)

// framesCommand decodes a frame stream and prints each frame.
type framesCommand struct {
	file     *string
	withDict *bool
}

func (cmd *framesCommand) run(c *kingpin.ParseContext) error {
	var input io.Reader = os.Stdin
	if *cmd.file != "" && *cmd.file != "-" {
		f, err := os.Open(*cmd.file)
		if err != nil {
			return errors.Wrap(err, "open file")
		}
		defer f.Close()
		input = f
	}

	var opts []stream.ReaderOption
	if *cmd.withDict {
		opts = append(opts, stream.WithReadDict(0))
	}
	r := stream.NewReader(input, opts...)

	frameNum := 0
	for {
		frame, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", frameNum+1)
		}
		frameNum++
		printFrame(r, frameNum, frame)
	}

	fmt.Fprintf(os.Stderr, "\n--- %d frames decoded ---\n", frameNum)
	return nil
}

func printFrame(r *stream.Reader, n int, f *stream.Frame) {
	fmt.Printf("--- Frame %d ---\n", n)
	fmt.Printf("  sid=%d seq=%d kind=%s len=%d\n", f.SID, f.Seq, f.Kind, len(f.Payload))

	if f.Compression != stream.CompressionNone {
		fmt.Printf("  comp=%s\n", f.Compression)
	}
	if f.CRC != nil {
		fmt.Printf("  crc=%08x\n", *f.CRC)
	}
	if f.IsFinal() {
		fmt.Printf("  final=true\n")
	}

	// Value-bearing frames get a JSON preview (truncated if long).
	if f.Kind == stream.KindValue || f.Kind == stream.KindErr {
		v, err := r.DecodeValue(f)
		if err != nil {
			fmt.Printf("  payload: <%v>\n", err)
			return
		}
		if v == nil {
			return
		}
		js, err := binjson.ToJSON(v)
		if err != nil {
			fmt.Printf("  payload: <%v>\n", err)
			return
		}
		preview := string(js)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		fmt.Printf("  payload: %s\n", preview)
	}
}

func addFramesCommand(app *kingpin.Application) {
	cmd := &framesCommand{}
	fr := app.Command("frames", "Decode a frame stream and print each frame.").Action(cmd.run)
	cmd.withDict = fr.Flag("dict", "Maintain a key dictionary while decoding.").Bool()
	cmd.file = fr.Arg("file", "Frame stream file (default stdin).").String()
}
