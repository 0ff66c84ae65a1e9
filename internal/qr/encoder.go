// Package qr renders URLs as scannable QR images.
package qr

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/url"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// ErrEncodingFailed indicates the input could not be encoded as a QR image.
var ErrEncodingFailed = errors.New("qr: encoding failed")

// ImageSize is the side length in pixels of rendered QR images.
const ImageSize = 256

// maxContentLength bounds the encoded payload; QR version 40 tops out well
// below typical URL limits at error level M.
const maxContentLength = 2048

// Encode renders the given URL as a 256x256 PNG and returns it as a
// data URL. The output is deterministic for a fixed input.
func Encode(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" || len(trimmed) > maxContentLength {
		return "", ErrEncodingFailed
	}
	parsed, errParse := url.Parse(trimmed)
	if errParse != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrEncodingFailed
	}

	code, errEncode := qr.Encode(trimmed, qr.M, qr.Auto)
	if errEncode != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, errEncode)
	}
	scaled, errScale := barcode.Scale(code, ImageSize, ImageSize)
	if errScale != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, errScale)
	}

	var buf bytes.Buffer
	if errPNG := png.Encode(&buf, scaled); errPNG != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodingFailed, errPNG)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
