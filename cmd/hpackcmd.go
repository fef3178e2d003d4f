package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/h2wire/hpack"
)

var hpackTableSize int

var hpackCmd = &cobra.Command{
	Use:   "hpack <hex>",
	Short: "Decode one HPACK header block from hex.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wire, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return fmt.Errorf("bad hex input: %w", err)
		}

		opts, err := cfg.HPACK.Options()
		if err != nil {
			return err
		}
		if hpackTableSize > 0 {
			opts.TableSize = hpackTableSize
		}

		d := hpack.NewDecompressor(opts)
		headers, err := d.DecodeBytes(wire)
		if err != nil {
			return fmt.Errorf("decoding header block: %w", err)
		}
		for _, h := range headers {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", h.Name, h.Value)
		}
		log.Info("Decoded header block",
			zap.Int("headers", len(headers)),
			zap.Int("table_size", d.Context().Size()))
		return nil
	},
}

func init() {
	hpackCmd.Flags().IntVar(&hpackTableSize, "table-size", 0, "dynamic table size limit (default from config)")
	rootCmd.AddCommand(hpackCmd)
}
