package utils

import (
	qrcode "github.com/skip2/go-qrcode"
)

// QRCodePNG renders content as a PNG QR image. Medium error recovery is enough
// for screen scans; printed tickets survive it too.
func QRCodePNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}
