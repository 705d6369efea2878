package download

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"example.com/cosmiqlink/internal/divelog"
	"example.com/cosmiqlink/internal/packet"
	"example.com/cosmiqlink/internal/transport"
)

// headerBlob builds one occupied 72-byte slot with the given log number and
// body placement.
func headerBlob(logNumber, logLength, startSector uint16, period byte) []byte {
	rec := make([]byte, divelog.HeaderRecordSize)
	binary.LittleEndian.PutUint16(rec[0x00:], logNumber)
	rec[0x10] = period
	binary.LittleEndian.PutUint16(rec[0x12:], logLength)
	binary.LittleEndian.PutUint16(rec[0x14:], startSector)
	binary.LittleEndian.PutUint16(rec[0x16:], startSector)
	return rec
}

// dataLine renders a device dump packet carrying payload.
func dataLine(cmd byte, payload []byte) string {
	return packet.Encode(cmd, byte(len(payload)), payload, packet.ChecksumSpec{})
}

func newTestSession(t *testing.T) (*Session, *transport.Pipe) {
	t.Helper()
	pipe := transport.NewPipe(64)
	return NewSession(pipe, Options{}), pipe
}

func TestSessionHappyPath(t *testing.T) {
	s, pipe := newTestSession(t)

	if s.Phase() != PhaseIdle {
		t.Fatalf("initial phase = %s", s.Phase())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Phase() != PhaseAwaitingHeader {
		t.Fatalf("phase after start = %s", s.Phase())
	}
	sent := pipe.Sent()
	if len(sent) != 1 || sent[0] != "#41ff00" {
		t.Fatalf("header request = %v, want [#41ff00]", sent)
	}

	blob := headerBlob(1, 8, 12, 2)
	for off := 0; off < len(blob); off += 8 {
		if err := s.OnLine(dataLine(packet.CmdHeaderData, blob[off:off+8])); err != nil {
			t.Fatalf("OnLine header chunk: %v", err)
		}
	}
	if err := s.FinishHeaderPhase(); err != nil {
		t.Fatalf("FinishHeaderPhase: %v", err)
	}
	if s.Phase() != PhaseAwaitingBody {
		t.Fatalf("phase after header finish = %s", s.Phase())
	}
	sent = pipe.Sent()
	if len(sent) != 2 || sent[1] != "#43ff00" {
		t.Fatalf("body request = %v, want #43ff00 second", sent)
	}

	if err := s.OnLine(dataLine(packet.CmdBodyData, []byte{0xC2, 0x00, 0xDA, 0x04, 0xFF, 0xFF, 0xFF, 0xFF})); err != nil {
		t.Fatalf("OnLine body chunk: %v", err)
	}
	result, err := s.FinishBodyPhase()
	if err != nil {
		t.Fatalf("FinishBodyPhase: %v", err)
	}
	if s.Phase() != PhaseComplete {
		t.Fatalf("phase after body finish = %s", s.Phase())
	}
	if len(result.Headers) != 1 || result.Headers[0].LogNumber != 1 {
		t.Fatalf("headers = %+v", result.Headers)
	}
	samples, err := result.ExtractSamples(result.Headers[0])
	if err != nil {
		t.Fatalf("ExtractSamples: %v", err)
	}
	if len(samples) != 1 || samples[0].DepthMeters != float64(0x04DA)/100 {
		t.Fatalf("samples = %+v", samples)
	}
	if result.Fingerprint() == "" {
		t.Fatalf("missing fingerprint")
	}
}

func TestSessionBusyOnReentrantStart(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("second Start err = %v, want ErrSessionBusy", err)
	}
	if err := s.FinishHeaderPhase(); err != nil {
		t.Fatalf("FinishHeaderPhase: %v", err)
	}
	if err := s.Start(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("Start during body phase err = %v, want ErrSessionBusy", err)
	}
}

func TestSessionRestartsFromTerminalPhases(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Fail(errors.New("link dropped"))
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase after Fail = %s", s.Phase())
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestSessionIgnoresUnrelatedCommands(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.FinishHeaderPhase(); err != nil {
		t.Fatalf("FinishHeaderPhase: %v", err)
	}
	// A settings echo during the body phase must leave bodyBytes untouched.
	if err := s.OnLine("#22c90215"); err != nil {
		t.Fatalf("OnLine settings echo: %v", err)
	}
	if _, body := s.Progress(); body != 0 {
		t.Fatalf("bodyBytes = %d after unrelated command, want 0", body)
	}
}

func TestSessionSegregatesLateHeaderData(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.FinishHeaderPhase(); err != nil {
		t.Fatalf("FinishHeaderPhase: %v", err)
	}
	// Header data arriving after the phase signal still lands in the header
	// buffer; the signal timing must not corrupt segregation.
	if err := s.OnLine(dataLine(packet.CmdHeaderData, []byte{1, 2, 3})); err != nil {
		t.Fatalf("OnLine: %v", err)
	}
	header, body := s.Progress()
	if header != 3 || body != 0 {
		t.Fatalf("progress = (%d,%d), want (3,0)", header, body)
	}
}

func TestSessionDropsMalformedWithoutStateChange(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.OnLine("garbage"); !errors.Is(err, packet.ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if err := s.OnLine("#22c70215"); !errors.Is(err, packet.ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
	if s.Phase() != PhaseAwaitingHeader {
		t.Fatalf("phase changed to %s on dropped lines", s.Phase())
	}
	header, body := s.Progress()
	if header != 0 || body != 0 {
		t.Fatalf("buffers changed on dropped lines: (%d,%d)", header, body)
	}
}

func TestSessionExpectedByteThresholds(t *testing.T) {
	s, pipe := newTestSession(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.ExpectHeaderBytes(6); err != nil {
		t.Fatalf("ExpectHeaderBytes: %v", err)
	}
	if err := s.ExpectBodyBytes(6); err != nil {
		t.Fatalf("ExpectBodyBytes: %v", err)
	}
	if err := s.OnLine(dataLine(packet.CmdHeaderData, []byte{0, 0, 0, 0, 0, 0})); err != nil {
		t.Fatalf("OnLine: %v", err)
	}
	if s.Phase() != PhaseAwaitingBody {
		t.Fatalf("phase = %s, want awaitingBody after header threshold", s.Phase())
	}
	if sent := pipe.Sent(); len(sent) != 2 {
		t.Fatalf("body request not sent: %v", sent)
	}
	if err := s.OnLine(dataLine(packet.CmdBodyData, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})); err != nil {
		t.Fatalf("OnLine: %v", err)
	}
	if s.Phase() != PhaseComplete {
		t.Fatalf("phase = %s, want complete after body threshold", s.Phase())
	}
	if _, ok := s.Result(); !ok {
		t.Fatalf("no result after threshold completion")
	}
}

func TestSessionFinishInWrongPhase(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.FinishHeaderPhase(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("FinishHeaderPhase idle err = %v, want ErrWrongPhase", err)
	}
	if _, err := s.FinishBodyPhase(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("FinishBodyPhase idle err = %v, want ErrWrongPhase", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.FinishBodyPhase(); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("FinishBodyPhase in header phase err = %v, want ErrWrongPhase", err)
	}
}

func TestSessionTransportFailureOnSend(t *testing.T) {
	pipe := transport.NewPipe(4)
	pipe.Close()
	s := NewSession(pipe, Options{})
	if err := s.Start(); !errors.Is(err, ErrTransportFailure) {
		t.Fatalf("Start on closed transport err = %v, want ErrTransportFailure", err)
	}
	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %s, want failed", s.Phase())
	}
}

func TestSessionAbortPreservesEarlierResult(t *testing.T) {
	dev := transport.NewMockDevice(headerBlob(5, 4, 12, 1), []byte{0xC2, 0x00, 0x28, 0x05})
	tr := dev.Transport()
	s := NewSession(tr, Options{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.Wait()
	drainInto(t, s, tr)
	if err := s.FinishHeaderPhase(); err != nil {
		t.Fatalf("FinishHeaderPhase: %v", err)
	}
	dev.Wait()
	drainInto(t, s, tr)
	first, err := s.FinishBodyPhase()
	if err != nil {
		t.Fatalf("FinishBodyPhase: %v", err)
	}
	firstHeaders := append([]divelog.Header{}, first.Headers...)

	// A later aborted session must not disturb the earlier snapshot.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s.Fail(errors.New("cancelled"))
	if !reflect.DeepEqual(first.Headers, firstHeaders) {
		t.Fatalf("earlier result mutated by abort")
	}
	samples, err := first.ExtractSamples(firstHeaders[0])
	if err != nil {
		t.Fatalf("ExtractSamples after abort: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("samples = %+v", samples)
	}
}

// drainInto feeds every line currently buffered on the pipe into the session.
func drainInto(t *testing.T, s *Session, tr *transport.Pipe) {
	t.Helper()
	for {
		select {
		case line, ok := <-tr.Lines():
			if !ok {
				return
			}
			if err := s.OnLine(line); err != nil {
				t.Fatalf("OnLine(%q): %v", line, err)
			}
		default:
			return
		}
	}
}
