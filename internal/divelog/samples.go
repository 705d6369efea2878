package divelog

import (
	"errors"
	"fmt"
)

const (
	// SectorSize is the device's flash addressing unit.
	SectorSize = 4096

	// sectorBase is the first sector of the log body region; startSector
	// values are offsets from it.
	sectorBase = 12

	// sampleFrameSize is one candidate frame: marker, zero, depthLo, depthHi.
	sampleFrameSize = 4

	// maxDepthRaw is the exclusive sanity ceiling on the raw depth field,
	// roughly 200 m. Frames past it are noise, not samples.
	maxDepthRaw = 20000
)

// ErrRegionOutOfBounds reports sector math that exceeds the body buffer. It
// signals a partial or corrupt download, not a parser defect.
var ErrRegionOutOfBounds = errors.New("dive region out of bounds")

// ScanStats reports how the marker scan walked a dive region.
type ScanStats struct {
	RegionBytes int
	Samples     int
	Resyncs     int
}

// ExtractSamples slices the dive's body region by sector addressing and scans
// it for marker-framed depth samples.
func ExtractSamples(bodyBytes []byte, hdr Header) ([]Sample, error) {
	samples, _, err := ExtractSamplesStats(bodyBytes, hdr)
	return samples, err
}

// ExtractSamplesStats is ExtractSamples with scan statistics for metrics and
// diagnostics.
//
// The scan is byte-resynchronizing: a valid frame is [marker, 0x00, depthLo,
// depthHi] with the marker in 0xB0..0xBF or 0xC0..0xCF, and its raw depth must
// fall in (0, 20000). Acceptance advances the cursor by the frame size; any
// other byte advances it by one. The stream is not self-delimiting and may
// contain interstitial filler, so this tolerance is load-bearing: changing the
// marker ranges or the depth bound changes which bytes are classified as
// samples.
func ExtractSamplesStats(bodyBytes []byte, hdr Header) ([]Sample, ScanStats, error) {
	offset := (int(hdr.StartSector) - sectorBase) * SectorSize
	length := int(hdr.LogLength)
	if offset < 0 || offset+length > len(bodyBytes) {
		return nil, ScanStats{}, fmt.Errorf("%w: log %d wants [%d:%d) of %d body bytes",
			ErrRegionOutOfBounds, hdr.LogNumber, offset, offset+length, len(bodyBytes))
	}
	region := bodyBytes[offset : offset+length]

	var samples []Sample
	stats := ScanStats{RegionBytes: len(region)}
	sampleIndex := 0
	for i := 0; i+sampleFrameSize <= len(region); {
		marker := region[i]
		if region[i+1] == 0 && isSampleMarker(marker) {
			depthRaw := uint16(region[i+2]) | uint16(region[i+3])<<8
			if depthRaw > 0 && depthRaw < maxDepthRaw {
				samples = append(samples, Sample{
					TimeSeconds: uint32(sampleIndex) * uint32(hdr.LogPeriod),
					DepthMeters: float64(depthRaw) / 100,
					Marker:      marker,
				})
				sampleIndex++
				i += sampleFrameSize
				continue
			}
		}
		i++
		stats.Resyncs++
	}
	stats.Samples = len(samples)
	return samples, stats, nil
}

func isSampleMarker(b byte) bool {
	return (b >= 0xB0 && b <= 0xBF) || (b >= 0xC0 && b <= 0xCF)
}
