package gateway

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Registered so image.Decode can handle the upload formats accepted by
	// the API. PNG and JPEG pass through untouched; everything else is
	// re-encoded to PNG.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// NormalizeImage converts a reference image into an encoding the external
// service accepts natively. PNG and JPEG inputs are returned unchanged; any
// other decodable raster format is transcoded to PNG. Undecodable input is
// an error.
func NormalizeImage(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	switch format {
	case "png":
		return data, "image/png", nil
	case "jpeg":
		return data, "image/jpeg", nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
