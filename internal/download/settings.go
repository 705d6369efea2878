package download

import (
	"errors"
	"fmt"
	"sort"

	"example.com/cosmiqlink/internal/packet"
)

// SettingDef describes one writable device setting: its command id, the value
// width on the wire and the accepted value range. The declared length byte of
// a settings command counts payload hex characters, twice the byte width.
type SettingDef struct {
	Command byte
	Name    string
	Width   int
	Min     uint16
	Max     uint16
	Unit    string
}

var ErrUnknownSetting = errors.New("unknown setting")

// ErrValueOutOfRange rejects a value outside the setting's accepted range.
var ErrValueOutOfRange = errors.New("setting value out of range")

// Writable settings as reverse-engineered from the companion app. Ranges are
// the ones the app enforces, not device hard limits.
var settingDefs = []SettingDef{
	{Command: packet.CmdUnits, Name: "units", Width: 1, Min: 0, Max: 1, Unit: "0=metric 1=imperial"},
	{Command: packet.CmdAirMix, Name: "airMix", Width: 1, Min: 21, Max: 40, Unit: "% O2"},
	{Command: packet.CmdWaterType, Name: "waterType", Width: 1, Min: 0, Max: 1, Unit: "0=salt 1=fresh"},
	{Command: packet.CmdDiveMode, Name: "diveMode", Width: 1, Min: 0, Max: 2, Unit: "0=scuba 1=gauge 2=freedive"},
	{Command: packet.CmdSafetyStop, Name: "safetyStop", Width: 1, Min: 0, Max: 5, Unit: "minutes"},
	{Command: packet.CmdDepthAlarm, Name: "depthAlarm", Width: 2, Min: 300, Max: 12000, Unit: "cm"},
	{Command: packet.CmdDiveTimeAlarm, Name: "diveTimeAlarm", Width: 2, Min: 1, Max: 999, Unit: "minutes"},
	{Command: packet.CmdPO2Alarm, Name: "po2Alarm", Width: 2, Min: 100, Max: 160, Unit: "cbar"},
	{Command: packet.CmdSamplingRate, Name: "samplingRate", Width: 1, Min: 1, Max: 60, Unit: "seconds"},
	{Command: packet.CmdBrightness, Name: "brightness", Width: 1, Min: 1, Max: 5, Unit: "level"},
	{Command: packet.CmdLanguage, Name: "language", Width: 1, Min: 0, Max: 8, Unit: "index"},
	{Command: packet.CmdDateFormat, Name: "dateFormat", Width: 1, Min: 0, Max: 1, Unit: "0=dmy 1=mdy"},
	{Command: packet.CmdAutoOff, Name: "autoOff", Width: 1, Min: 0, Max: 1, Unit: "bool"},
	{Command: packet.CmdNoFlyMode, Name: "noFlyMode", Width: 1, Min: 0, Max: 1, Unit: "bool"},
	{Command: packet.CmdFreediveAlarm1, Name: "freediveAlarm1", Width: 2, Min: 0, Max: 12000, Unit: "cm"},
	{Command: packet.CmdFreediveAlarm2, Name: "freediveAlarm2", Width: 2, Min: 0, Max: 12000, Unit: "cm"},
	{Command: packet.CmdFreediveAlarm3, Name: "freediveAlarm3", Width: 2, Min: 0, Max: 999, Unit: "seconds"},
	{Command: packet.CmdFreediveAlarm4, Name: "freediveAlarm4", Width: 2, Min: 0, Max: 999, Unit: "seconds"},
}

// Settings lists every writable setting, sorted by command id.
func Settings() []SettingDef {
	out := make([]SettingDef, len(settingDefs))
	copy(out, settingDefs)
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// SettingByName resolves a setting definition by its name.
func SettingByName(name string) (SettingDef, bool) {
	for _, def := range settingDefs {
		if def.Name == name {
			return def, true
		}
	}
	return SettingDef{}, false
}

// EncodeSetting builds the wire line for one settings-write command. The
// value is validated against the setting's range and rendered big-endian at
// the setting's width; the checksum comes from the command table.
func EncodeSetting(table packet.Table, def SettingDef, value uint16) (string, error) {
	if value < def.Min || value > def.Max {
		return "", fmt.Errorf("%w: %s=%d, accepted %d..%d %s",
			ErrValueOutOfRange, def.Name, value, def.Min, def.Max, def.Unit)
	}
	spec, ok := table.Lookup(def.Command)
	if !ok {
		return "", fmt.Errorf("%w: no checksum spec for command 0x%02x", ErrUnknownSetting, def.Command)
	}
	var payload []byte
	if def.Width == 2 {
		payload = []byte{byte(value >> 8), byte(value)}
	} else {
		payload = []byte{byte(value)}
	}
	return packet.Encode(def.Command, byte(2*def.Width), payload, spec), nil
}

// EncodeSettingByName is EncodeSetting keyed by setting name.
func EncodeSettingByName(table packet.Table, name string, value uint16) (string, error) {
	def, ok := SettingByName(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	return EncodeSetting(table, def, value)
}
