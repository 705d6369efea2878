// Package packet implements the ASCII command protocol spoken by the COSMIQ
// dive computer over its serial-like wireless link. A packet is a single text
// line: a '#' start marker followed by two hex digits each for command id,
// checksum and declared length, then the payload rendered as hex digit pairs.
// All digits are lower-case and zero-padded; the device encodes and decodes
// through text, never raw binary.
package packet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// StartMarker opens every frame on the wire.
	StartMarker = '#'

	// headerHexLen is the fixed frame header: command, checksum and length,
	// two hex digits each.
	headerHexLen = 6
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// WirePacket is a decoded frame. Payload holds the raw bytes recovered from
// the hex-pair text; Length is the length byte as declared by the sender,
// which counts payload bytes for telemetry packets and payload hex characters
// for settings commands.
type WirePacket struct {
	Command  byte
	Checksum byte
	Length   byte
	Payload  []byte
}

// Encode renders a frame for the given command. The caller supplies the
// declared length byte explicitly: the protocol mandates per-command length
// semantics (byte count or hex-character count) that cannot be derived from
// the payload alone. The returned string carries no line terminator; the
// transport appends it.
func Encode(cmd byte, length byte, payload []byte, spec ChecksumSpec) string {
	sum := spec.Checksum(length, payload)
	var b strings.Builder
	b.Grow(1 + headerHexLen + 2*len(payload))
	b.WriteByte(StartMarker)
	fmt.Fprintf(&b, "%02x%02x%02x", cmd, sum, length)
	b.WriteString(hex.EncodeToString(payload))
	return b.String()
}

// Decode parses a frame line and validates its checksum against the table.
// Trailing CR/LF is tolerated. Command ids without a registered spec decode
// without checksum validation: telemetry packets such as the log dump stream
// carry ids outside the settings table and are classified downstream by id
// alone.
func Decode(line string, table Table) (WirePacket, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || line[0] != StartMarker {
		return WirePacket{}, fmt.Errorf("%w: missing start marker", ErrMalformedFrame)
	}
	body := line[1:]
	if len(body) < headerHexLen {
		return WirePacket{}, fmt.Errorf("%w: frame shorter than header", ErrMalformedFrame)
	}
	if len(body)%2 != 0 {
		return WirePacket{}, fmt.Errorf("%w: odd hex length %d", ErrMalformedFrame, len(body))
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return WirePacket{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	pkt := WirePacket{
		Command:  raw[0],
		Checksum: raw[1],
		Length:   raw[2],
		Payload:  raw[3:],
	}
	// The declared length counts payload bytes on dump packets and payload
	// hex characters on settings commands. Accept either reading.
	if n := int(pkt.Length); n != len(pkt.Payload) && n != 2*len(pkt.Payload) {
		return WirePacket{}, fmt.Errorf("%w: declared length %d does not match %d payload bytes",
			ErrMalformedFrame, pkt.Length, len(pkt.Payload))
	}
	if spec, ok := table.Lookup(pkt.Command); ok {
		want := spec.Checksum(pkt.Length, pkt.Payload)
		if want != pkt.Checksum {
			return WirePacket{}, fmt.Errorf("%w: command 0x%02x declared 0x%02x, computed 0x%02x",
				ErrChecksumMismatch, pkt.Command, pkt.Checksum, want)
		}
	}
	return pkt, nil
}
