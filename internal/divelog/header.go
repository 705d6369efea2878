package divelog

import "encoding/binary"

// HeaderRecordSize is the fixed on-device size of one log slot.
const HeaderRecordSize = 72

// Reserved logNumber values marking an empty slot.
const (
	sentinelEmpty  = 0x0000
	sentinelErased = 0xFFFF
)

// Field offsets within a header record. All multi-byte fields are
// little-endian.
const (
	offLogNumber   = 0x00
	offMode        = 0x02
	offOxygen      = 0x03
	offYear        = 0x04
	offMonth       = 0x06
	offDay         = 0x07
	offHour        = 0x08
	offMinute      = 0x09
	offDuration    = 0x0A
	offMaxDepth    = 0x0C
	offMinTemp     = 0x0E
	offLogPeriod   = 0x10
	offLogLength   = 0x12
	offStartSector = 0x14
	offEndSector   = 0x16
)

// ParseHeaders partitions headerBytes into consecutive 72-byte windows and
// decodes each occupied slot. A trailing partial window is dropped. Sentinel
// slots (logNumber 0 or 0xFFFF) are skipped without decoding the remaining
// fields. Window order is preserved and repeated log numbers pass through;
// de-duplication is the caller's concern.
func ParseHeaders(headerBytes []byte) []Header {
	count := len(headerBytes) / HeaderRecordSize
	headers := make([]Header, 0, count)
	for i := 0; i < count; i++ {
		rec := headerBytes[i*HeaderRecordSize : (i+1)*HeaderRecordSize]
		logNumber := binary.LittleEndian.Uint16(rec[offLogNumber:])
		if logNumber == sentinelEmpty || logNumber == sentinelErased {
			continue
		}
		headers = append(headers, decodeHeader(logNumber, rec))
	}
	return headers
}

func decodeHeader(logNumber uint16, rec []byte) Header {
	return Header{
		LogNumber:     logNumber,
		Mode:          Mode(rec[offMode]),
		OxygenPercent: rec[offOxygen],
		Date: DiveDate{
			Year:   binary.LittleEndian.Uint16(rec[offYear:]),
			Month:  rec[offMonth],
			Day:    rec[offDay],
			Hour:   rec[offHour],
			Minute: rec[offMinute],
		},
		DurationMinutes: binary.LittleEndian.Uint16(rec[offDuration:]),
		MaxDepthMeters:  float64(binary.LittleEndian.Uint16(rec[offMaxDepth:])) / 100,
		MinTempCelsius:  float64(int16(binary.LittleEndian.Uint16(rec[offMinTemp:]))) / 10,
		LogPeriod:       rec[offLogPeriod],
		LogLength:       binary.LittleEndian.Uint16(rec[offLogLength:]),
		StartSector:     binary.LittleEndian.Uint16(rec[offStartSector:]),
		EndSector:       binary.LittleEndian.Uint16(rec[offEndSector:]),
	}
}
