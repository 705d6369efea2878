package transport

import (
	"encoding/hex"
	"fmt"
	"sync"

	"example.com/cosmiqlink/internal/packet"
)

// mockChunkSize matches the device's dump packet payload size.
const mockChunkSize = 6

// MockDevice emulates the dive computer's download side over a Pipe: a header
// request streams the canned header blob as 0x42 packets, a body request
// streams the body blob as 0x44 packets. Short trailing chunks are padded
// with 0xFF the way erased flash reads back.
type MockDevice struct {
	pipe   *Pipe
	header []byte
	body   []byte

	wg sync.WaitGroup
}

// NewMockDevice wires a mock device to a fresh pipe.
func NewMockDevice(header, body []byte) *MockDevice {
	d := &MockDevice{
		pipe:   NewPipe(256),
		header: header,
		body:   body,
	}
	d.pipe.OnSend(d.handle)
	return d
}

// Transport returns the host side of the link.
func (d *MockDevice) Transport() *Pipe {
	return d.pipe
}

// Wait blocks until any in-flight response stream has drained. Call before
// closing the pipe.
func (d *MockDevice) Wait() {
	d.wg.Wait()
}

func (d *MockDevice) handle(line string) {
	pkt, err := packet.Decode(line, nil)
	if err != nil {
		return
	}
	switch pkt.Command {
	case packet.CmdHeaderRequest:
		d.stream(packet.CmdHeaderData, d.header)
	case packet.CmdBodyRequest:
		d.stream(packet.CmdBodyData, d.body)
	}
}

// stream pushes blob as fixed-size data packets. The device streams
// asynchronously after acknowledging a request, so this runs off the caller's
// goroutine; the host reads lines while it sends.
func (d *MockDevice) stream(cmd byte, blob []byte) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for off := 0; off < len(blob); off += mockChunkSize {
			chunk := make([]byte, mockChunkSize)
			n := copy(chunk, blob[off:])
			for i := n; i < mockChunkSize; i++ {
				chunk[i] = 0xFF
			}
			var sum byte
			for _, b := range chunk {
				sum += b
			}
			line := fmt.Sprintf("#%02x%02x%02x%s", cmd, 0-sum, mockChunkSize, hex.EncodeToString(chunk))
			d.pipe.Push(line)
		}
	}()
}
