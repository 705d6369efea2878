package report

import (
	"bytes"
	"encoding/binary"
	"testing"

	"example.com/cosmiqlink/internal/divelog"
	"example.com/cosmiqlink/internal/download"
)

func TestBuildSummarizesDives(t *testing.T) {
	header := make([]byte, divelog.HeaderRecordSize)
	binary.LittleEndian.PutUint16(header[0x00:], 3)
	header[0x10] = 2
	binary.LittleEndian.PutUint16(header[0x12:], 8)
	binary.LittleEndian.PutUint16(header[0x14:], 12)
	binary.LittleEndian.PutUint16(header[0x16:], 12)

	body := []byte{
		0xC2, 0x00, 0xDA, 0x04,
		0xC2, 0x00, 0x10, 0x27, // raw 10000, depth 100 m
	}
	res := download.NewResult(header, body)

	rep := Build(res)
	if len(rep.Dives) != 1 {
		t.Fatalf("dives = %d, want 1", len(rep.Dives))
	}
	d := rep.Dives[0]
	if d.Header.LogNumber != 3 || d.SampleCount != 2 {
		t.Fatalf("summary = %+v", d)
	}
	if d.MaxDepth != 100 {
		t.Fatalf("max depth = %v, want 100", d.MaxDepth)
	}
	if rep.Fingerprint != res.Fingerprint() || rep.BodyBytes != len(body) {
		t.Fatalf("report metadata mismatch: %+v", rep)
	}
}

func TestBuildKeepsUnreadableDives(t *testing.T) {
	header := make([]byte, divelog.HeaderRecordSize)
	binary.LittleEndian.PutUint16(header[0x00:], 7)
	binary.LittleEndian.PutUint16(header[0x12:], 4096)
	binary.LittleEndian.PutUint16(header[0x14:], 12)
	res := download.NewResult(header, nil)

	rep := Build(res)
	if len(rep.Dives) != 1 || rep.Dives[0].SampleCount != 0 {
		t.Fatalf("unreadable dive dropped: %+v", rep.Dives)
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    Units
		wantErr bool
	}{
		{in: "", want: UnitsMetric},
		{in: "Metric", want: UnitsMetric},
		{in: "ft", want: UnitsImperial},
		{in: "furlongs", want: UnitsMetric, wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseUnits(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseUnits(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseUnits(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestUnitsFormatting(t *testing.T) {
	if got := UnitsMetric.Depth(12.42); got != "12.42 m" {
		t.Errorf("metric depth = %q", got)
	}
	if got := UnitsImperial.Depth(10); got != "32.8 ft" {
		t.Errorf("imperial depth = %q", got)
	}
	if got := UnitsImperial.Temperature(0); got != "32.0 °F" {
		t.Errorf("imperial temperature = %q", got)
	}
	if got := UnitsMetric.Duration(75); got != "1:15" {
		t.Errorf("duration = %q", got)
	}
}

func TestFingerprintQR(t *testing.T) {
	png, err := FingerprintQR("a3bb40cd", 64)
	if err != nil {
		t.Fatalf("FingerprintQR: %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("empty png")
	}
	if _, err := FingerprintQR("   ", 64); err == nil {
		t.Fatalf("blank fingerprint accepted")
	}
	// Case folding: lower- and upper-case digests render the same code.
	upper, err := FingerprintQR("A3BB40CD", 64)
	if err != nil {
		t.Fatalf("FingerprintQR upper: %v", err)
	}
	if !bytes.Equal(png, upper) {
		t.Fatalf("case folding changed the rendered code")
	}
}
