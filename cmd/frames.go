package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/h2wire/buffer"
	"github.com/xkilldash9x/h2wire/frame"
)

var framesJSON bool

var framesCmd = &cobra.Command{
	Use:   "frames [file|-]",
	Short: "Parse a captured byte stream into frames and print them.",
	Long: `Parse a byte stream containing serialized frames and print each one.
The input is a file of raw bytes or hex text, or "-" for stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		buf := buffer.New(data)
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
		count := 0
		for {
			f, err := frame.Parse(buf)
			if err != nil {
				return fmt.Errorf("after %d frames: %w", count, err)
			}
			if f == nil {
				break
			}
			count++
			if framesJSON {
				if err := enc.Encode(newFrameView(f)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), f.String())
			}
		}
		if buf.Len() > 0 {
			log.Warn("Trailing bytes do not form a complete frame", zap.Int("bytes", buf.Len()))
		}
		log.Info("Parsed frame stream", zap.Int("frames", count))
		return nil
	},
}

func init() {
	framesCmd.Flags().BoolVar(&framesJSON, "json", false, "emit one JSON object per frame")
	rootCmd.AddCommand(framesCmd)
}

// readInput loads a file or stdin, accepting either raw bytes or hex text.
func readInput(arg string) ([]byte, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return nil, err
	}

	trimmed := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, string(data))
	if decoded, hexErr := hex.DecodeString(trimmed); hexErr == nil && len(trimmed) > 0 {
		return decoded, nil
	}
	return data, nil
}

// frameView is the JSON shape of one parsed frame.
type frameView struct {
	Type      string `json:"type"`
	Stream    uint32 `json:"stream"`
	Flags     string `json:"flags,omitempty"`
	Length    uint16 `json:"length"`
	Payload   string `json:"payload,omitempty"`
	ErrCode   string `json:"err_code,omitempty"`
	Increment uint32 `json:"increment,omitempty"`
	Promised  uint32 `json:"promised_stream,omitempty"`
}

func newFrameView(f *frame.Frame) frameView {
	v := frameView{
		Type:    f.Type.String(),
		Stream:  f.Stream,
		Flags:   f.Flags.Names(f.Type),
		Length:  f.Length,
		Payload: hex.EncodeToString(f.Payload),
	}
	switch f.Type {
	case frame.TypeRSTStream, frame.TypeGoAway:
		v.ErrCode = f.ErrCode.String()
	case frame.TypeWindowUpdate:
		v.Increment = f.Increment
	case frame.TypePushPromise:
		v.Promised = f.PromisedStream
	}
	return v
}
