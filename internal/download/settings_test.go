package download

import (
	"errors"
	"strings"
	"testing"

	"example.com/cosmiqlink/internal/packet"
)

func TestEncodeSettingAirMixGolden(t *testing.T) {
	line, err := EncodeSettingByName(packet.DefaultTable(), "airMix", 21)
	if err != nil {
		t.Fatalf("EncodeSettingByName: %v", err)
	}
	if line != "#22c90215" {
		t.Fatalf("airMix line = %q, want #22c90215", line)
	}
}

func TestEncodeSettingWidths(t *testing.T) {
	table := packet.DefaultTable()

	tests := []struct {
		name      string
		value     uint16
		wantCmd   string
		wantLen   string
		wantValue string
	}{
		{name: "units", value: 1, wantCmd: "21", wantLen: "02", wantValue: "01"},
		{name: "depthAlarm", value: 3000, wantCmd: "26", wantLen: "04", wantValue: "0bb8"},
		{name: "freediveAlarm4", value: 90, wantCmd: "32", wantLen: "04", wantValue: "005a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line, err := EncodeSettingByName(table, tc.name, tc.value)
			if err != nil {
				t.Fatalf("EncodeSettingByName: %v", err)
			}
			if !strings.HasPrefix(line, "#"+tc.wantCmd) {
				t.Errorf("line %q does not start with command %s", line, tc.wantCmd)
			}
			if got := line[5:7]; got != tc.wantLen {
				t.Errorf("declared length = %s, want %s", got, tc.wantLen)
			}
			if got := line[7:]; got != tc.wantValue {
				t.Errorf("payload = %s, want %s", got, tc.wantValue)
			}
			// Every generated line must survive its own decoder.
			pkt, err := packet.Decode(line, table)
			if err != nil {
				t.Fatalf("Decode(%q): %v", line, err)
			}
			if pkt.Length != byte(2*len(pkt.Payload)) {
				t.Errorf("length %d does not count payload hex chars", pkt.Length)
			}
		})
	}
}

func TestEncodeSettingRangeValidation(t *testing.T) {
	table := packet.DefaultTable()

	tests := []struct {
		name  string
		value uint16
	}{
		{name: "airMix", value: 20},
		{name: "airMix", value: 41},
		{name: "depthAlarm", value: 299},
		{name: "brightness", value: 0},
		{name: "samplingRate", value: 61},
	}
	for _, tc := range tests {
		if _, err := EncodeSettingByName(table, tc.name, tc.value); !errors.Is(err, ErrValueOutOfRange) {
			t.Errorf("%s=%d err = %v, want ErrValueOutOfRange", tc.name, tc.value, err)
		}
	}
}

func TestEncodeSettingUnknownName(t *testing.T) {
	if _, err := EncodeSettingByName(packet.DefaultTable(), "warpDrive", 1); !errors.Is(err, ErrUnknownSetting) {
		t.Fatalf("err = %v, want ErrUnknownSetting", err)
	}
}

func TestSettingsSortedAndComplete(t *testing.T) {
	defs := Settings()
	if len(defs) != 18 {
		t.Fatalf("len(Settings()) = %d, want 18", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Command >= defs[i].Command {
			t.Fatalf("settings not sorted: 0x%02x before 0x%02x", defs[i-1].Command, defs[i].Command)
		}
	}
	table := packet.DefaultTable()
	for _, def := range defs {
		if _, ok := table.Lookup(def.Command); !ok {
			t.Errorf("setting %s (0x%02x) has no checksum spec", def.Name, def.Command)
		}
	}
}
