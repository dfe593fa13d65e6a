// Package protocol implements the command/response protocol spoken by the
// ASCON accelerator over its serial link.
//
// This package provides functions to build command frames and parse reply
// frames. It performs no I/O; see package channel for the transport and
// package accelerator for the encryption workflow.
//
// # Frame Overview
//
// Every command is a single ASCII tag byte followed by an optional payload:
//
//	Command: [TAG][PAYLOAD...]
//	Reply:   [PAYLOAD...]["OK"]
//
// Accelerator commands carry binary payloads padded to the width of the
// accelerator's registers:
//   - L: key (16 bytes)
//   - O: nonce (16 bytes)
//   - B: associated data (6 bytes + 0x80 0x00)
//   - X: data block (181 bytes + 0x80 0x00 0x00)
//   - H: trigger encryption
//   - U: fetch tag (reply: 16 bytes + "OK")
//   - D: fetch ciphertext (reply: 184 bytes + "OK")
//
// Register commands are line-oriented ASCII used for board bring-up:
//   - A<hex2>: set register address
//   - W<hex2>: write register value
//   - G: display the register value on the LEDs
//   - R: read register value (reply: 1 raw byte + "OK")
//
// # Command Builders
//
// Use the Build* functions to create command frames:
//
//	frame, err := protocol.BuildLoadKeyCmd(key)
//	frame, err := protocol.BuildLoadDataBlockCmd(block)
//	frame := protocol.BuildSetAddressCmd(0x10) // "A10"
//
// # Reply Validation
//
// The accelerator answers load and trigger commands with a reply that
// contains "OK" somewhere, possibly after status bytes. Register commands
// answer with exactly "OK". Pick the rule with a ReplyMode:
//
//	err := protocol.ValidateOK(reply, protocol.ReplyPermissive) // accelerator
//	err := protocol.ValidateOK(reply, protocol.ReplyStrict)     // registers
//
// Result decoders return the fixed-length value and whether the "OK" trailer
// was present:
//
//	tag, confirmed, err := protocol.ParseTagResponse(reply)
//	ct, confirmed, err := protocol.ParseCiphertextResponse(reply)
//
// # Error Handling
//
// Wrong-length inputs are rejected with *ValidationError before anything is
// sent. Replies that fail length or sentinel checks produce *ProtocolError:
//
//	var perr *protocol.ProtocolError
//	if errors.As(err, &perr) {
//	    fmt.Printf("%s: %d bytes received\n", perr.Operation, len(perr.Reply))
//	}
package protocol
