// Package blockfile reads and writes block files: one fixed-size block per
// line, hex encoded.
//
// File format:
//
//	00112233...EEFF
//	A0A1A2A3...AEAF
//
// Lines are trimmed of surrounding whitespace and empty lines are skipped.
// Hex digits may be in either case on read; Write emits uppercase.
package blockfile

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultBlockCapacity is the initial capacity of the block slice.
const DefaultBlockCapacity = 64

// Parse reads every block from the file at path. Each line must decode to
// exactly size bytes.
//
// Example:
//
//	blocks, err := blockfile.Parse("plain.csv", protocol.DataBlockSize)
//	if err != nil {
//	    log.Fatal(err)
//	}
func Parse(path string, size int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f, size)
}

// ParseReader reads every block from r.
func ParseReader(r io.Reader, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid block size %d", size)
	}

	scanner := bufio.NewScanner(r)

	blocks := make([][]byte, 0, DefaultBlockCapacity)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		block, err := parseLine(line, size)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		blocks = append(blocks, block)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("no blocks found in file")
	}

	return blocks, nil
}

func parseLine(line string, size int) ([]byte, error) {
	if len(line) != 2*size {
		return nil, fmt.Errorf("invalid line length: got %d characters, expected %d", len(line), 2*size)
	}

	block, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return block, nil
}

// Write creates or truncates the file at path and writes blocks to it.
func Write(path string, blocks [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := WriteTo(f, blocks); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes one uppercase hex line per block.
func WriteTo(w io.Writer, blocks [][]byte) error {
	bw := bufio.NewWriter(w)
	for i, block := range blocks {
		if _, err := bw.WriteString(strings.ToUpper(hex.EncodeToString(block))); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return bw.Flush()
}
