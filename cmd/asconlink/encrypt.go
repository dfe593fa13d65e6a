package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-asconlink/accelerator"
	"github.com/moffa90/go-asconlink/blockfile"
	"github.com/moffa90/go-asconlink/protocol"
)

type encryptOptions struct {
	in    string
	out   string
	data  string
	key   string
	nonce string
	ad    string
}

func newEncryptCmd(a *app) *cobra.Command {
	var opts encryptOptions

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt data blocks on the accelerator",
		Long: `Encrypt 181-byte data blocks with the accelerator.

With --in, every line of the input file is one hex-encoded block; each block
is encrypted in its own session and written to --out (or stdout) as one hex
line holding the 184-byte ciphertext followed by the 16-byte tag.

With --data, a single hex block is encrypted and the tag and ciphertext are
printed.`,
		Example: `  asconlink encrypt --key 000102030405060708090A0B0C0D0E0F \
    --nonce 0F0E0D0C0B0A09080706050403020100 --ad A0A1A2A3A4A5 \
    --in plain.csv --out cipher.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncrypt(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.in, "in", "", "input block file")
	f.StringVar(&opts.out, "out", "", "output file (default stdout)")
	f.StringVar(&opts.data, "data", "", "single 181-byte block in hex")
	f.StringVar(&opts.key, "key", "", "16-byte key in hex")
	f.StringVar(&opts.nonce, "nonce", "", "16-byte nonce in hex")
	f.StringVar(&opts.ad, "ad", "", "6-byte associated data in hex")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("nonce")
	_ = cmd.MarkFlagRequired("ad")
	cmd.MarkFlagsMutuallyExclusive("in", "data")
	cmd.MarkFlagsOneRequired("in", "data")

	return cmd
}

func (a *app) runEncrypt(cmd *cobra.Command, opts encryptOptions) error {
	params, err := parseParams(opts)
	if err != nil {
		return err
	}

	var blocks [][]byte
	if opts.in != "" {
		if blocks, err = blockfile.Parse(opts.in, protocol.DataBlockSize); err != nil {
			return err
		}
	} else {
		block, err := protocol.ParseHex("data block", opts.data)
		if err != nil {
			return err
		}
		blocks = [][]byte{block}
	}

	acc, err := a.openAccelerator(accelerator.WithProgressCallback(func(p accelerator.Progress) {
		a.log.Info("encryption progress",
			"phase", p.Phase,
			"block", p.CurrentBlock,
			"total", p.TotalBlocks,
			"percent", fmt.Sprintf("%.1f", p.Percentage),
		)
	}))
	if err != nil {
		return err
	}
	defer acc.Close()

	results, err := acc.EncryptBlocks(cmd.Context(), params, blocks)
	if opts.data != "" {
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), results[0])
		return nil
	}

	// Blocks completed before a failure are still written.
	if err != nil && len(results) == 0 {
		return err
	}
	if werr := a.writeResults(cmd.OutOrStdout(), opts.out, results, len(blocks)); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

func (a *app) writeResults(stdout io.Writer, path string, results []*accelerator.Result, total int) error {
	encrypted := make([][]byte, len(results))
	for i, r := range results {
		encrypted[i] = r.Encrypted()
	}
	if path == "" {
		return blockfile.WriteTo(stdout, encrypted)
	}
	if err := blockfile.Write(path, encrypted); err != nil {
		return err
	}
	if len(results) < total {
		a.log.Warn("batch incomplete", "written", len(results), "total", total)
		fmt.Fprintf(stdout, "Encrypted %d of %d blocks to %s\n", len(results), total, path)
		return nil
	}
	fmt.Fprintf(stdout, "Encrypted %d blocks to %s\n", len(results), path)
	return nil
}

func parseParams(opts encryptOptions) (accelerator.Params, error) {
	key, err := protocol.ParseHex("key", opts.key)
	if err != nil {
		return accelerator.Params{}, err
	}
	nonce, err := protocol.ParseHex("nonce", opts.nonce)
	if err != nil {
		return accelerator.Params{}, err
	}
	ad, err := protocol.ParseHex("associated data", opts.ad)
	if err != nil {
		return accelerator.Params{}, err
	}
	return accelerator.Params{Key: key, Nonce: nonce, AssociatedData: ad}, nil
}

// printResult shows the tag, then the ciphertext 16 bytes per line.
func printResult(w io.Writer, r *accelerator.Result) {
	fmt.Fprintf(w, "Tag: %s\n", r.Tag)
	fmt.Fprintln(w, "Ciphertext:")
	ct := r.Ciphertext.String()
	for i := 0; i < len(ct); i += 32 {
		end := i + 32
		if end > len(ct) {
			end = len(ct)
		}
		fmt.Fprintln(w, ct[i:end])
	}
}
