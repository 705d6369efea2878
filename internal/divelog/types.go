// Package divelog decodes the COSMIQ's proprietary binary dive log: fixed
// 72-byte header records downloaded in the header phase, and marker-framed
// depth sample streams located by sector addressing in the body dump.
package divelog

import (
	"fmt"
	"time"
)

// Mode is the dive mode recorded in a header slot.
type Mode uint8

const (
	ModeScuba Mode = iota
	ModeGauge
	ModeFreedive
)

func (m Mode) String() string {
	switch m {
	case ModeScuba:
		return "scuba"
	case ModeGauge:
		return "gauge"
	case ModeFreedive:
		return "freedive"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// DiveDate is the dive start timestamp as stored on the device. The device
// has no timezone notion; values are wall-clock local time.
type DiveDate struct {
	Year   uint16 `json:"year"`
	Month  uint8  `json:"month"`
	Day    uint8  `json:"day"`
	Hour   uint8  `json:"hour"`
	Minute uint8  `json:"minute"`
}

// Time converts the stored date to a time.Time in the given location.
func (d DiveDate) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), int(d.Hour), int(d.Minute), 0, 0, loc)
}

func (d DiveDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

// Header is one decoded 72-byte log slot. Immutable once parsed; the caller
// owns the returned collection.
type Header struct {
	LogNumber       uint16   `json:"logNumber"`
	Mode            Mode     `json:"mode"`
	OxygenPercent   uint8    `json:"oxygenPercent"`
	Date            DiveDate `json:"date"`
	DurationMinutes uint16   `json:"durationMinutes"`
	MaxDepthMeters  float64  `json:"maxDepthMeters"`
	MinTempCelsius  float64  `json:"minTempCelsius"`
	LogPeriod       uint8    `json:"logPeriodSeconds"`
	LogLength       uint16   `json:"logLength"`
	StartSector     uint16   `json:"startSector"`
	EndSector       uint16   `json:"endSector"`
}

// Sample is one depth reading. TimeSeconds is derived from the accepted
// sample index and the header's sampling interval. Marker keeps the raw frame
// marker byte for diagnostics.
type Sample struct {
	TimeSeconds uint32  `json:"timeSeconds"`
	DepthMeters float64 `json:"depthMeters"`
	Marker      byte    `json:"marker"`
}
