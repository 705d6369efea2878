package report

import (
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// FingerprintQR renders the download fingerprint as a QR code PNG. The
// fingerprint is normalized to upper-case hex first: QR alphanumeric mode
// only covers upper-case letters, so the folded form encodes in fewer
// modules than the raw lower-case digest.
func FingerprintQR(fingerprint string, size int) ([]byte, error) {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - ('a' - 'A')
		}
		return -1
	}, fingerprint)
	if normalized == "" {
		return nil, errors.New("download fingerprint is empty")
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(normalized, qrcode.Medium, size)
}
