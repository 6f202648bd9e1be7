package imagesrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/canvas"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 10, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 128})

	u, err := Decode("eq.png", bytes.NewReader(encodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, "png", u.Format)
	assert.Equal(t, 2, u.Width)

	img, err := u.Image()
	require.NoError(t, err)
	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	_, _, _, a = img.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestDecode_JPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	u, err := Decode("eq.jpg", &buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", u.Format)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not an image", []byte("hello, world")},
		{"too large", bytes.Repeat([]byte{0}, MaxUploadBytes+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("x", bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

// pngHeader returns a PNG signature and IHDR chunk declaring a w×h
// grayscale image with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth

	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecode_RejectsOversizedDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"8000x8000", 8000, 8000},
		{"one row over", 4096, 4097},
		{"very wide", 1 << 20, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pngHeader(tt.w, tt.h)
			require.Less(t, len(data), 64)

			_, err := Decode("huge.png", bytes.NewReader(data))
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, err.Error(), "megapixels")
		})
	}
}

func TestDecode_AcceptsWideImageUnderLimit(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4096, 64))
	u, err := Decode("wide.png", bytes.NewReader(encodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, 4096, u.Width)
	assert.NotEmpty(t, u.ID)
}

func TestUpload_BytesFetchesOnce(t *testing.T) {
	u, err := Decode("eq.png", bytes.NewReader(encodePNG(t, image.NewGray(image.Rect(0, 0, 2, 2)))))
	require.NoError(t, err)
	stored := u.PNG

	calls := 0
	lazy := &Upload{ID: u.ID, Width: 2, Height: 2}
	lazy.Attach(func() ([]byte, error) {
		calls++
		return stored, nil
	})

	img, err := lazy.Image()
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	_, err = lazy.Bytes()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	empty := &Upload{ID: "gone"}
	_, err = empty.Image()
	assert.True(t, errors.Is(err, ErrNoImage))
}

func TestFlatten_CompositesOverWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(1, 0, color.NRGBA{A: 255})

	out := Flatten(src)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(1, 0))
}

func TestFromCanvas_EmptyIsNoImage(t *testing.T) {
	s := canvas.DefaultSettings()
	s.Width, s.Height = 20, 20
	c := canvas.NewSurface(s)

	_, err := FromCanvas(&c)
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestFromCanvas_AfterClearIsNoImage(t *testing.T) {
	s := canvas.DefaultSettings()
	s.Width, s.Height = 20, 20
	c := canvas.NewSurface(s)
	for _, ev := range []canvas.PointerEvent{
		{Kind: canvas.PointerDown, X: 2, Y: 2},
		{Kind: canvas.PointerUp, X: 10, Y: 10},
	} {
		_, err := c.Handle(ev)
		require.NoError(t, err)
	}

	img, err := FromCanvas(&c)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())

	c.Clear()
	_, err = FromCanvas(&c)
	assert.True(t, errors.Is(err, ErrNoImage))
}

func TestSelect(t *testing.T) {
	_, err := Select(SourceUpload, nil, nil)
	assert.True(t, errors.Is(err, ErrNoImage))

	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	u, err := Decode("a.png", bytes.NewReader(encodePNG(t, src)))
	require.NoError(t, err)

	img, err := Select(SourceUpload, nil, u)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}

func TestDecode_UnsupportedFormatMessage(t *testing.T) {
	_, err := Decode("x.gif", strings.NewReader("GIF89a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestDropAlpha_KeepsColorUnderTransparentPixels(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 20, A: 0})

	out := DropAlpha(src)
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 20, A: 255}, out.NRGBAAt(0, 0))
}
