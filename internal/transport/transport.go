// Package transport carries packet lines between the host and the dive
// computer. The downloader consumes the Line capability only; discovery and
// connection management of the wireless link itself stay outside, behind
// whatever bridges the device to a serial-like port.
package transport

import "errors"

// ErrClosed is returned when sending on a transport that has been closed or
// has lost its underlying link.
var ErrClosed = errors.New("transport closed")

// Line is the minimal serial-like capability: send one packet line, receive
// packet lines as the device emits them. The Lines channel closes when the
// link goes down; an orchestrator treats that as a transport failure.
type Line interface {
	SendLine(text string) error
	Lines() <-chan string
	Close() error
}
