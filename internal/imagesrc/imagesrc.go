// Package imagesrc produces the opaque problem image handed to the model,
// either from the drawing surface or from an uploaded file.
package imagesrc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
)

const (
	// MaxUploadBytes caps the size of an uploaded file.
	MaxUploadBytes = 10 << 20

	// MaxUploadPixels caps the decoded size of an upload. Compressed
	// formats can describe far more pixels than their file size suggests.
	MaxUploadPixels = 4096 * 4096
)

// ErrNoImage blocks a solve when there is nothing to send.
var ErrNoImage = &apperr.Error{
	Kind: apperr.KindValidation,
	Msg:  "no image yet: draw something or upload a file first",
}

// Source selects where the problem image comes from.
type Source int

const (
	SourceCanvas Source = iota
	SourceUpload
)

// Upload is a decoded upload, normalized to an opaque PNG.
type Upload struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	// PNG is left out of the JSON form. Session stores keep it under its
	// own key and hand it back through Attach.
	PNG []byte `json:"-"`

	fetch func() ([]byte, error)
}

// Decode reads an uploaded file, decodes png, jpeg, webp or bmp and drops
// the alpha channel.
func Decode(filename string, r io.Reader) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, apperr.Validation("file is larger than %d MiB", MaxUploadBytes>>20)
	}
	if len(data) == 0 {
		return nil, apperr.Validation("uploaded file is empty")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperr.Validation("image has no pixels")
	}
	if cfg.Width*cfg.Height > MaxUploadPixels {
		return nil, apperr.Validation("image is %d×%d; the limit is %d megapixels",
			cfg.Width, cfg.Height, MaxUploadPixels/1_000_000)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	opaque := DropAlpha(img)
	var buf bytes.Buffer
	if err := png.Encode(&buf, opaque); err != nil {
		return nil, fmt.Errorf("encoding upload: %w", err)
	}

	b := opaque.Bounds()
	return &Upload{
		ID:       uuid.NewString(),
		Filename: filename,
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		PNG:      buf.Bytes(),
	}, nil
}

func decodeError(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return apperr.Validation("unsupported image format (use png, jpg, jpeg, webp or bmp)")
	}
	return apperr.Validation("could not decode image: %v", err)
}

// Attach sets where Bytes reads the PNG from when it is not in memory.
func (u *Upload) Attach(fetch func() ([]byte, error)) {
	u.fetch = fetch
}

// Bytes returns the normalized PNG, fetching it on first use.
func (u *Upload) Bytes() ([]byte, error) {
	if u.PNG == nil && u.fetch != nil {
		b, err := u.fetch()
		if err != nil {
			return nil, fmt.Errorf("loading upload %s: %w", u.ID, err)
		}
		u.PNG = b
	}
	if len(u.PNG) == 0 {
		return nil, ErrNoImage
	}
	return u.PNG, nil
}

// Image decodes the normalized upload.
func (u *Upload) Image() (image.Image, error) {
	b, err := u.Bytes()
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decoding stored upload: %w", err)
	}
	return img, nil
}

// DropAlpha converts img to NRGBA with every pixel fully opaque. Color
// channels are kept as they are, not blended.
func DropAlpha(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// Flatten composites img over opaque white.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// FromCanvas renders the surface and flattens it onto white. An empty
// surface is ErrNoImage.
func FromCanvas(c *canvas.Surface) (image.Image, error) {
	img, ok := c.Render()
	if !ok {
		return nil, ErrNoImage
	}
	return Flatten(img), nil
}

// Select returns the problem image for src.
func Select(src Source, c *canvas.Surface, u *Upload) (image.Image, error) {
	switch src {
	case SourceCanvas:
		if c == nil {
			return nil, ErrNoImage
		}
		return FromCanvas(c)
	case SourceUpload:
		if u == nil {
			return nil, ErrNoImage
		}
		return u.Image()
	default:
		return nil, ErrNoImage
	}
}
