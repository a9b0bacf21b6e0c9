package export

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR encodes the given content as a PNG image of the requested size.
func RenderQR(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr requires content")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}
