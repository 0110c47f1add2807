package pdf

import (
	"bytes"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

type ImagePolicy struct {
	MaxBytes     int
	MaxDimension int
	Quality      int
}

func DefaultImagePolicy() ImagePolicy {
	return ImagePolicy{
		MaxBytes:     300 << 10,
		MaxDimension: 1024,
		Quality:      75,
	}
}

var embeddable = map[string]string{
	"image/jpeg": "JPG",
	"image/png":  "PNG",
}

// Prepare returns data as an embeddable image. JPEG and PNG within the size
// limit pass through untouched; anything else is decoded, fitted inside
// MaxDimension and re-encoded as JPEG.
func (p ImagePolicy) Prepare(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, errors.New("empty image")
	}
	format, ok := embeddable[http.DetectContentType(data)]
	if ok && len(data) <= p.MaxBytes {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return Image{}, errors.Wrap(err, "decode image header")
		}
		if cfg.Width <= p.MaxDimension && cfg.Height <= p.MaxDimension {
			return Image{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
		}
	}
	return p.recompress(data)
}

func (p ImagePolicy) recompress(data []byte) (Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, errors.Wrap(err, "decode image")
	}
	b := img.Bounds()
	if b.Dx() > p.MaxDimension || b.Dy() > p.MaxDimension {
		img = imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return Image{}, errors.Wrap(err, "encode jpeg")
	}
	b = img.Bounds()
	return Image{Data: buf.Bytes(), Format: "JPG", Width: b.Dx(), Height: b.Dy()}, nil
}
