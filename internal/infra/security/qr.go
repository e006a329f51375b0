package security

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ErrQRGeneration indicates the QR encoder failed to render the URI.
var ErrQRGeneration = errors.New("qr code generation failed")

// RenderQRPNG encodes the provisioning URI as a PNG QR code of size x size pixels.
func RenderQRPNG(uri string, size int) ([]byte, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: uri is required", ErrQRGeneration)
	}
	if size <= 0 {
		size = 256
	}

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRGeneration, err)
	}

	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRGeneration, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRGeneration, err)
	}

	return buf.Bytes(), nil
}
