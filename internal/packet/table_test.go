package packet

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTableFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write table file: %v", err)
	}
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeTableFile(t, `
commands:
  - id: 0x22
    name: airMix
    algorithm: valueOnly
    target: 0xDE
  - id: 0x30
    name: freediveAlarm2
    algorithm: valueOnly
    target: 0xEB
    swapped: true
`)
	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("table has %d entries, want 2", len(table))
	}
	spec, ok := table.Lookup(CmdAirMix)
	if !ok {
		t.Fatalf("air mix entry missing")
	}
	if spec.Algorithm != ValueOnly || spec.Target != 0xDE || spec.Swapped {
		t.Fatalf("unexpected air mix spec: %+v", spec)
	}
	alarm, ok := table.Lookup(CmdFreediveAlarm2)
	if !ok || !alarm.Swapped {
		t.Fatalf("freedive alarm slot 2 should be swapped: %+v", alarm)
	}
}

func TestLoadTableRejectsDuplicates(t *testing.T) {
	path := writeTableFile(t, `
commands:
  - id: 0x22
    algorithm: valueOnly
    target: 0xDE
  - id: 0x22
    algorithm: fullSum
    target: 0x10
`)
	if _, err := LoadTable(path); err == nil {
		t.Fatalf("expected duplicate entry error")
	}
}

func TestLoadTableRejectsUnknownAlgorithm(t *testing.T) {
	path := writeTableFile(t, `
commands:
  - id: 0x22
    algorithm: crc16
    target: 0xDE
`)
	if _, err := LoadTable(path); err == nil {
		t.Fatalf("expected unknown algorithm error")
	}
}

func TestDefaultTableCoversSettingsRange(t *testing.T) {
	table := DefaultTable()
	for cmd := byte(CmdUnits); cmd <= CmdFreediveAlarm4; cmd++ {
		if _, ok := table.Lookup(cmd); !ok {
			t.Fatalf("no spec registered for settings command 0x%02x", cmd)
		}
	}
	for _, cmd := range []byte{CmdHeaderRequest, CmdHeaderData, CmdBodyRequest, CmdBodyData} {
		if _, ok := table.Lookup(cmd); ok {
			t.Fatalf("dump command 0x%02x must not be checksum-validated", cmd)
		}
	}
	pairs := [][2]byte{
		{CmdFreediveAlarm1, CmdFreediveAlarm2},
		{CmdFreediveAlarm3, CmdFreediveAlarm4},
	}
	for _, pair := range pairs {
		odd, _ := table.Lookup(pair[0])
		even, _ := table.Lookup(pair[1])
		if odd.Target != even.Target {
			t.Fatalf("alarm pair 0x%02x/0x%02x should share a target", pair[0], pair[1])
		}
		if odd.Swapped || !even.Swapped {
			t.Fatalf("alarm pair 0x%02x/0x%02x operand order wrong: %+v %+v", pair[0], pair[1], odd, even)
		}
	}
}
