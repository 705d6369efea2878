// Package download drives the two-phase dive log download: request the
// header table, accumulate the streamed header bytes, request the body,
// accumulate body bytes, then hand both blobs to the divelog parsers. The
// device emits no end-of-stream marker for either phase, so phase completion
// is pushed in from outside (idle timing or expected byte counts); the
// session only guarantees buffer segregation and ordering.
package download

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"example.com/cosmiqlink/internal/common"
	"example.com/cosmiqlink/internal/divelog"
	"example.com/cosmiqlink/internal/packet"
	"example.com/cosmiqlink/internal/transport"
)

// Phase is the session state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingHeader
	PhaseAwaitingBody
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingHeader:
		return "awaitingHeader"
	case PhaseAwaitingBody:
		return "awaitingBody"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Terminal reports whether a new download may start from p.
func (p Phase) Terminal() bool {
	return p == PhaseIdle || p == PhaseComplete || p == PhaseFailed
}

var (
	// ErrSessionBusy rejects a reentrant Start. A running download is never
	// silently reset; in-flight data would be lost.
	ErrSessionBusy = errors.New("download session busy")

	// ErrWrongPhase rejects a phase-completion call that does not match the
	// session state.
	ErrWrongPhase = errors.New("wrong session phase")

	// ErrTransportFailure marks a session failed by the link going down.
	ErrTransportFailure = errors.New("transport failure")
)

// Options configures a session. Zero values fall back to the default command
// table, a FullSum/0xFF request spec and a nop logger.
type Options struct {
	// Table validates inbound settings echoes. Dump stream ids are not in
	// the table and pass through unvalidated.
	Table packet.Table

	// RequestSpec computes the checksum on outbound header/body requests.
	// The requests carry no payload; the reverse-engineered capture shows a
	// fixed checksum byte, reproduced here by FullSum against target 0xFF.
	RequestSpec packet.ChecksumSpec

	Logger  *zap.Logger
	Metrics *common.Metrics
}

// Session is the download orchestrator. One logical session at a time; all
// methods are safe for concurrent use, though the expected driver is a single
// event loop feeding OnLine.
type Session struct {
	mu          sync.Mutex
	tr          transport.Line
	table       packet.Table
	requestSpec packet.ChecksumSpec
	log         *zap.Logger
	metrics     *common.Metrics

	phase        Phase
	headerBytes  []byte
	bodyBytes    []byte
	expectHeader int
	expectBody   int

	result *Result
}

// NewSession wires a session to the transport.
func NewSession(tr transport.Line, opts Options) *Session {
	if opts.Table == nil {
		opts.Table = packet.DefaultTable()
	}
	if opts.RequestSpec == (packet.ChecksumSpec{}) {
		opts.RequestSpec = packet.ChecksumSpec{Algorithm: packet.FullSum, Target: 0xFF}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		tr:          tr,
		table:       opts.Table,
		requestSpec: opts.RequestSpec,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		phase:       PhaseIdle,
	}
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Progress returns the accumulated byte counts for both phases.
func (s *Session) Progress() (headerBytes, bodyBytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.headerBytes), len(s.bodyBytes)
}

// Result returns the completed download, if any.
func (s *Session) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Start begins a new download: buffers are reset and the header request goes
// out. Fails with ErrSessionBusy while a download is in flight. A previous
// session's Result stays valid; it is a snapshot, not a live view.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.phase.Terminal() {
		return fmt.Errorf("%w: phase %s", ErrSessionBusy, s.phase)
	}
	s.headerBytes = nil
	s.bodyBytes = nil
	s.result = nil
	if s.metrics != nil {
		s.metrics.Start()
	}
	if err := s.sendRequestLocked(packet.CmdHeaderRequest); err != nil {
		return err
	}
	s.phase = PhaseAwaitingHeader
	s.log.Info("download started")
	return nil
}

// ExpectHeaderBytes arms automatic header-phase completion once n payload
// bytes have accumulated. Zero disarms it.
func (s *Session) ExpectHeaderBytes(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectHeader = n
	return s.maybeAdvanceLocked()
}

// ExpectBodyBytes arms automatic body-phase completion once n payload bytes
// have accumulated. Zero disarms it.
func (s *Session) ExpectBodyBytes(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectBody = n
	return s.maybeAdvanceLocked()
}

// OnLine feeds one received line into the session. Malformed frames are
// logged and dropped without touching session state; checksum failures on
// recognized settings commands surface to the caller the same way. Command
// ids unrelated to the dump stream are ignored, devices interleave unrelated
// notifications freely.
func (s *Session) OnLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkt, err := packet.Decode(line, s.table)
	if err != nil {
		s.log.Debug("dropped line", zap.String("line", line), zap.Error(err))
		return err
	}
	if s.phase != PhaseAwaitingHeader && s.phase != PhaseAwaitingBody {
		s.log.Debug("line outside active session", zap.Uint8("command", pkt.Command))
		return nil
	}
	switch pkt.Command {
	case packet.CmdHeaderData:
		s.headerBytes = append(s.headerBytes, pkt.Payload...)
	case packet.CmdBodyData:
		s.bodyBytes = append(s.bodyBytes, pkt.Payload...)
	default:
		return nil
	}
	if s.metrics != nil {
		s.metrics.AddPacket(int64(len(pkt.Payload)))
	}
	return s.maybeAdvanceLocked()
}

// FinishHeaderPhase ends the header phase on an external completion signal
// and requests the body.
func (s *Session) FinishHeaderPhase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishHeaderLocked()
}

// FinishBodyPhase ends the body phase, parses the accumulated blobs and
// completes the session.
func (s *Session) FinishBodyPhase() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishBodyLocked()
}

// Fail aborts the session: accumulated partial buffers are discarded, never
// parsed. Results from previously completed sessions are unaffected.
func (s *Session) Fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.log.Warn("download failed",
		zap.String("phase", s.phase.String()),
		zap.Error(cause))
	s.phase = PhaseFailed
	s.headerBytes = nil
	s.bodyBytes = nil
	if s.metrics != nil {
		s.metrics.Stop()
	}
}

func (s *Session) maybeAdvanceLocked() error {
	if s.phase == PhaseAwaitingHeader && s.expectHeader > 0 && len(s.headerBytes) >= s.expectHeader {
		return s.finishHeaderLocked()
	}
	if s.phase == PhaseAwaitingBody && s.expectBody > 0 && len(s.bodyBytes) >= s.expectBody {
		_, err := s.finishBodyLocked()
		return err
	}
	return nil
}

func (s *Session) finishHeaderLocked() error {
	if s.phase != PhaseAwaitingHeader {
		return fmt.Errorf("%w: finishHeaderPhase in %s", ErrWrongPhase, s.phase)
	}
	if err := s.sendRequestLocked(packet.CmdBodyRequest); err != nil {
		return err
	}
	s.phase = PhaseAwaitingBody
	s.log.Info("header phase complete", zap.Int("headerBytes", len(s.headerBytes)))
	return nil
}

func (s *Session) finishBodyLocked() (*Result, error) {
	if s.phase != PhaseAwaitingBody {
		return nil, fmt.Errorf("%w: finishBodyPhase in %s", ErrWrongPhase, s.phase)
	}
	s.result = newResult(s.headerBytes, s.bodyBytes)
	s.phase = PhaseComplete
	if s.metrics != nil {
		s.metrics.Stop()
	}
	s.log.Info("download complete",
		zap.Int("headerBytes", len(s.headerBytes)),
		zap.Int("bodyBytes", len(s.bodyBytes)),
		zap.Int("dives", len(s.result.Headers)))
	return s.result, nil
}

// sendRequestLocked emits a zero-payload request frame. A send failure is a
// transport failure: the session fails and the caller restarts from Start.
func (s *Session) sendRequestLocked(cmd byte) error {
	line := packet.Encode(cmd, 0, nil, s.requestSpec)
	if err := s.tr.SendLine(line); err != nil {
		s.phase = PhaseFailed
		s.headerBytes = nil
		s.bodyBytes = nil
		if s.metrics != nil {
			s.metrics.Stop()
		}
		return fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	return nil
}

// Result is an immutable snapshot of one completed download. The body copy is
// private; sample extraction reads it without exposing mutable state.
type Result struct {
	Headers []divelog.Header

	header      []byte
	body        []byte
	fingerprint string
}

// NewResult builds a result directly from reassembled blobs, for offline
// re-parsing of captured dumps.
func NewResult(headerBytes, bodyBytes []byte) *Result {
	return newResult(headerBytes, bodyBytes)
}

func newResult(headerBytes, bodyBytes []byte) *Result {
	header := make([]byte, len(headerBytes))
	copy(header, headerBytes)
	body := make([]byte, len(bodyBytes))
	copy(body, bodyBytes)
	sum := sha256.New()
	sum.Write(headerBytes)
	sum.Write(bodyBytes)
	return &Result{
		Headers:     divelog.ParseHeaders(headerBytes),
		header:      header,
		body:        body,
		fingerprint: hex.EncodeToString(sum.Sum(nil)),
	}
}

// HeaderBlob returns a copy of the raw header region.
func (r *Result) HeaderBlob() []byte {
	out := make([]byte, len(r.header))
	copy(out, r.header)
	return out
}

// BodyBlob returns a copy of the raw body region.
func (r *Result) BodyBlob() []byte {
	out := make([]byte, len(r.body))
	copy(out, r.body)
	return out
}

// ExtractSamples decodes the sample stream for one of the result's dives.
func (r *Result) ExtractSamples(hdr divelog.Header) ([]divelog.Sample, error) {
	return divelog.ExtractSamples(r.body, hdr)
}

// ExtractSamplesStats is ExtractSamples with scan statistics.
func (r *Result) ExtractSamplesStats(hdr divelog.Header) ([]divelog.Sample, divelog.ScanStats, error) {
	return divelog.ExtractSamplesStats(r.body, hdr)
}

// BodyLen returns the size of the downloaded body blob.
func (r *Result) BodyLen() int {
	return len(r.body)
}

// Fingerprint is the SHA-256 of the raw download, header blob then body blob.
func (r *Result) Fingerprint() string {
	return r.fingerprint
}
