package packet

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Log download command ids. These sit outside the settings table: the device
// does not checksum-validate its own dump stream, so they carry no
// ChecksumSpec entry.
const (
	CmdHeaderRequest = 0x41
	CmdHeaderData    = 0x42
	CmdBodyRequest   = 0x43
	CmdBodyData      = 0x44
)

// Settings-write command ids reverse-engineered from the companion app. Each
// is bound to a ChecksumSpec in the command table.
const (
	CmdUnits          = 0x21
	CmdAirMix         = 0x22
	CmdWaterType      = 0x23
	CmdDiveMode       = 0x24
	CmdSafetyStop     = 0x25
	CmdDepthAlarm     = 0x26
	CmdDiveTimeAlarm  = 0x27
	CmdPO2Alarm       = 0x28
	CmdSamplingRate   = 0x29
	CmdBrightness     = 0x2A
	CmdLanguage       = 0x2B
	CmdDateFormat     = 0x2C
	CmdAutoOff        = 0x2D
	CmdNoFlyMode      = 0x2E
	CmdFreediveAlarm1 = 0x2F
	CmdFreediveAlarm2 = 0x30
	CmdFreediveAlarm3 = 0x31
	CmdFreediveAlarm4 = 0x32
)

// Table is the immutable per-command checksum lookup. It is built once at
// startup, either from DefaultTable or from a YAML command table file, and
// never mutated afterwards.
type Table map[byte]ChecksumSpec

// Lookup returns the spec registered for cmd, if any.
func (t Table) Lookup(cmd byte) (ChecksumSpec, bool) {
	spec, ok := t[cmd]
	return spec, ok
}

// Merge returns a new table with entries from other overriding t.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for id, spec := range t {
		out[id] = spec
	}
	for id, spec := range other {
		out[id] = spec
	}
	return out
}

// DefaultTable returns the built-in settings command table. The Air Mix entry
// is the documented ground truth (#22c90215 <=> target 0xDE, payload sum
// only); the remaining targets come from the same capture table. The freedive
// alarm slots pair up on a shared target with the operand order swapped on the
// even slot of each pair, exactly as captured per slot, without assuming a
// device-side rule.
func DefaultTable() Table {
	specs := []ChecksumSpec{
		{Command: CmdUnits, Name: "units", Algorithm: FullSum, Target: 0xDD},
		{Command: CmdAirMix, Name: "airMix", Algorithm: ValueOnly, Target: 0xDE},
		{Command: CmdWaterType, Name: "waterType", Algorithm: FullSum, Target: 0xDF},
		{Command: CmdDiveMode, Name: "diveMode", Algorithm: FullSum, Target: 0xE0},
		{Command: CmdSafetyStop, Name: "safetyStop", Algorithm: ValueOnly, Target: 0xE1},
		{Command: CmdDepthAlarm, Name: "depthAlarm", Algorithm: FullSum, Target: 0xE2},
		{Command: CmdDiveTimeAlarm, Name: "diveTimeAlarm", Algorithm: FullSum, Target: 0xE3},
		{Command: CmdPO2Alarm, Name: "po2Alarm", Algorithm: ValueOnly, Target: 0xE4},
		{Command: CmdSamplingRate, Name: "samplingRate", Algorithm: FullSum, Target: 0xE5},
		{Command: CmdBrightness, Name: "brightness", Algorithm: ValueOnly, Target: 0xE6},
		{Command: CmdLanguage, Name: "language", Algorithm: FullSum, Target: 0xE7},
		{Command: CmdDateFormat, Name: "dateFormat", Algorithm: FullSum, Target: 0xE8},
		{Command: CmdAutoOff, Name: "autoOff", Algorithm: ValueOnly, Target: 0xE9},
		{Command: CmdNoFlyMode, Name: "noFlyMode", Algorithm: FullSum, Target: 0xEA},
		{Command: CmdFreediveAlarm1, Name: "freediveAlarm1", Algorithm: ValueOnly, Target: 0xEB},
		{Command: CmdFreediveAlarm2, Name: "freediveAlarm2", Algorithm: ValueOnly, Target: 0xEB, Swapped: true},
		{Command: CmdFreediveAlarm3, Name: "freediveAlarm3", Algorithm: ValueOnly, Target: 0xED},
		{Command: CmdFreediveAlarm4, Name: "freediveAlarm4", Algorithm: ValueOnly, Target: 0xED, Swapped: true},
	}
	t := make(Table, len(specs))
	for _, spec := range specs {
		t[spec.Command] = spec
	}
	return t
}

type tableFile struct {
	Commands []ChecksumSpec `yaml:"commands"`
}

// LoadTable reads a YAML command table file. Entries are keyed by command id;
// a file entry for an id already present in the default table overrides it
// when merged by the caller.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open command table: %w", err)
	}
	defer f.Close()

	var doc tableFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode command table: %w", err)
	}
	if len(doc.Commands) == 0 {
		return nil, fmt.Errorf("command table %s lists no commands", path)
	}
	t := make(Table, len(doc.Commands))
	for _, spec := range doc.Commands {
		if _, dup := t[spec.Command]; dup {
			return nil, fmt.Errorf("command table %s: duplicate entry for 0x%02x", path, spec.Command)
		}
		t[spec.Command] = spec
	}
	return t, nil
}
