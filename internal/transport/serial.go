package transport

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const lineTerminator = "\r\n"

// Serial adapts a serial port (typically the BLE-to-serial bridge in front of
// the device) to the Line capability. A reader goroutine delivers one packet
// line per channel message and closes the channel when the port dies.
type Serial struct {
	port  serial.Port
	log   *zap.Logger
	lines chan string

	closeOnce sync.Once
	closeErr  error
}

// ListPorts enumerates candidate serial ports.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// OpenSerial opens portName at the given baud rate and starts the reader.
func OpenSerial(portName string, baud int, log *zap.Logger) (*Serial, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	s := &Serial{
		port:  port,
		log:   log,
		lines: make(chan string, 64),
	}
	go s.readLoop()
	return s, nil
}

// SendLine writes one packet line followed by the line terminator.
func (s *Serial) SendLine(text string) error {
	n, err := s.port.Write([]byte(text + lineTerminator))
	if err != nil {
		s.log.Error("serial write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	s.log.Debug("sent line", zap.String("line", text), zap.Int("bytes", n))
	return nil
}

// Lines returns the received line stream. The channel closes on port failure
// or Close.
func (s *Serial) Lines() <-chan string {
	return s.lines
}

// Close shuts the port; the reader drains out and closes the line channel.
func (s *Serial) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

func (s *Serial) readLoop() {
	defer close(s.lines)
	reader := bufio.NewReader(s.port)
	for {
		raw, err := reader.ReadString('\n')
		if line := strings.TrimRight(raw, lineTerminator); line != "" {
			s.lines <- line
		}
		if err != nil {
			s.log.Warn("serial read ended", zap.Error(err))
			return
		}
	}
}
