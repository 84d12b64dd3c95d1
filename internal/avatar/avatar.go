// Package avatar turns user-supplied JPEG/PNG pictures into small square
// webp avatars and stores them either in an object-storage bucket or under
// the local data directory.
package avatar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

const avatarSize = 256

// Process decodes a JPEG or PNG, honors the EXIF orientation when one is
// present, center-crops to a square and encodes a 256px webp.
func Process(r io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	orientation := 1
	if exifData, err := exif.Decode(bytes.NewReader(buf)); err == nil {
		if tag, err := exifData.Get(exif.Orientation); err == nil {
			orientation, _ = tag.Int(0)
		}
	}

	img, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decoding avatar: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("unsupported avatar format: %s", format)
	}

	switch orientation {
	case 3:
		img = imaging.Rotate180(img)
	case 6:
		img = imaging.Rotate270(img)
	case 8:
		img = imaging.Rotate90(img)
	}

	img = imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	out := new(bytes.Buffer)
	err = webp.Encode(out, img, &webp.Options{
		Quality:  50,
		Lossless: false,
	})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Name derives the stored object name from the processed bytes, so the
// same picture always lands on the same name.
func Name(processed []byte) string {
	sum := sha256.Sum256(processed)
	return hex.EncodeToString(sum[:16]) + ".webp"
}
