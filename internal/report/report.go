package report

import (
	"encoding/json"
	"os"
	"time"

	"example.com/cosmiqlink/internal/divelog"
	"example.com/cosmiqlink/internal/download"
)

// DiveSummary is one logbook entry with the scan outcome folded in.
type DiveSummary struct {
	Header      divelog.Header `json:"header"`
	SampleCount int            `json:"sampleCount"`
	Resyncs     int            `json:"resyncs"`
	MaxDepth    float64        `json:"maxDepthMeters"`
}

// DiveReport is the printable view of one completed download.
type DiveReport struct {
	GeneratedAt time.Time     `json:"generatedAt"`
	Fingerprint string        `json:"fingerprint"`
	BodyBytes   int           `json:"bodyBytes"`
	Dives       []DiveSummary `json:"dives"`
}

// Build summarizes a download result. Dives whose body region falls outside
// the downloaded bytes are reported with zero samples rather than dropped;
// the logbook entry is still real even when its profile is unreadable.
func Build(res *download.Result) DiveReport {
	rep := DiveReport{
		GeneratedAt: time.Now().UTC(),
		Fingerprint: res.Fingerprint(),
		BodyBytes:   res.BodyLen(),
	}
	for _, hdr := range res.Headers {
		summary := DiveSummary{Header: hdr}
		samples, stats, err := res.ExtractSamplesStats(hdr)
		if err == nil {
			summary.SampleCount = len(samples)
			summary.Resyncs = stats.Resyncs
			for _, s := range samples {
				if s.DepthMeters > summary.MaxDepth {
					summary.MaxDepth = s.DepthMeters
				}
			}
		}
		rep.Dives = append(rep.Dives, summary)
	}
	return rep
}

func SaveJSON(rep DiveReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (DiveReport, error) {
	var rep DiveReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
