package divelog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"example.com/cosmiqlink/internal/packet"
)

// Dump holds the reassembled state of a captured download: every header-data
// payload concatenated in arrival order, and likewise for the body.
type Dump struct {
	HeaderBytes []byte
	BodyBytes   []byte

	// Lines counts packet lines consumed; Skipped counts lines that did not
	// decode as frames. Captures routinely contain app chatter between
	// packets, so skipping is not an error.
	Lines   int
	Skipped int
}

// ReadDump reassembles header and body blobs from a captured dump: one packet
// per line, as written by the companion app's debug log. Those captures strip
// the '#' start marker, so bare hex lines are accepted as well. Lines that
// decode to commands other than the dump stream ids are ignored.
func ReadDump(r io.Reader, table packet.Table) (*Dump, error) {
	dump := &Dump{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		dump.Lines++
		if line[0] != packet.StartMarker {
			line = string(packet.StartMarker) + line
		}
		pkt, err := packet.Decode(line, table)
		if err != nil {
			dump.Skipped++
			continue
		}
		switch pkt.Command {
		case packet.CmdHeaderData:
			dump.HeaderBytes = append(dump.HeaderBytes, pkt.Payload...)
		case packet.CmdBodyData:
			dump.BodyBytes = append(dump.BodyBytes, pkt.Payload...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	return dump, nil
}

// paddingChunkSize matches the device's 6-byte dump packet payload; erased
// flash arrives as runs of 0xFF chunks of this size.
const paddingChunkSize = 6

// DataBlocks splits the body into clusters of non-erased data, dropping the
// 0xFF padding runs between them. Diagnostic view only; sample extraction
// uses sector addressing, not clusters.
func DataBlocks(bodyBytes []byte) [][]byte {
	padding := bytes.Repeat([]byte{0xFF}, paddingChunkSize)
	var blocks [][]byte
	var current []byte
	for i := 0; i < len(bodyBytes); i += paddingChunkSize {
		end := i + paddingChunkSize
		if end > len(bodyBytes) {
			end = len(bodyBytes)
		}
		chunk := bodyBytes[i:end]
		if bytes.Equal(chunk, padding) {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, chunk...)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}
