package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// SaveDivePDF renders the dive report into a PDF document. The fingerprint
// is embedded both as text and as a QR code so a printout can be matched
// back to the raw download.
func SaveDivePDF(rep DiveReport, units Units, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Dive Log Report", false)
	pdf.SetAuthor("cosmiqctl", false)
	pdf.SetCreator("cosmiqctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Dive Log Report")
	addSummarySection(pdf, rep, units)
	addDiveTableSection(pdf, rep, units)
	addFingerprintSection(pdf, rep.Fingerprint)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep DiveReport, units Units) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	totalSamples := 0
	var totalMinutes uint32
	var deepest float64
	for _, d := range rep.Dives {
		totalSamples += d.SampleCount
		totalMinutes += uint32(d.Header.DurationMinutes)
		if depth := maxDepthOf(d); depth > deepest {
			deepest = depth
		}
	}

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Generated", value: rep.GeneratedAt.Format("2006-01-02 15:04 MST")},
		{label: "Dives", value: strconv.Itoa(len(rep.Dives))},
		{label: "Total Bottom Time", value: fmt.Sprintf("%d:%02d", totalMinutes/60, totalMinutes%60)},
		{label: "Deepest Dive", value: units.Depth(deepest)},
		{label: "Samples", value: strconv.Itoa(totalSamples)},
		{label: "Body Bytes", value: strconv.Itoa(rep.BodyBytes)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addDiveTableSection(pdf *gofpdf.Fpdf, rep DiveReport, units Units) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Dives")
	pdf.Ln(9)

	if len(rep.Dives) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No dives recorded.", "", "L", false)
		return
	}

	headers := []string{"#", "Date", "Mode", "Duration", "Max Depth", "Min Temp", "O2", "Samples"}
	widths := []float64{12, 36, 22, 20, 26, 24, 14, 22}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, d := range rep.Dives {
		values := []string{
			strconv.Itoa(int(d.Header.LogNumber)),
			d.Header.Date.String(),
			d.Header.Mode.String(),
			units.Duration(d.Header.DurationMinutes),
			units.Depth(maxDepthOf(d)),
			units.Temperature(d.Header.MinTempCelsius),
			fmt.Sprintf("%d%%", d.Header.OxygenPercent),
			strconv.Itoa(d.SampleCount),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

// maxDepthOf prefers the scanned profile maximum; the header value stands in
// when the profile was unreadable.
func maxDepthOf(d DiveSummary) float64 {
	if d.MaxDepth > 0 {
		return d.MaxDepth
	}
	return d.Header.MaxDepthMeters
}

func addFingerprintSection(pdf *gofpdf.Fpdf, fingerprint string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Download Fingerprint")
	pdf.Ln(9)

	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, strings.TrimSpace(fingerprint), "", "L", false)
	pdf.Ln(2)

	png, err := FingerprintQR(fingerprint, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("fingerprint-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("fingerprint-qr", pdf.GetX(), pdf.GetY(), 34, 34, true, opts, 0, "")
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}
