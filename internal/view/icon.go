package view

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jamesprial/smbshare-mcp/internal/shares"
	"github.com/nfnt/resize"
)

// ErrEmptyIcon is returned when decoding an icon from no data.
var ErrEmptyIcon = errors.New("view: empty icon data")

// ImageIcon renders a source image scaled with Lanczos resampling.
// Disabled icons are drawn in grayscale, Active ones brightened and
// Selected ones tinted; the Off state halves the alpha.
type ImageIcon struct {
	src image.Image
}

// NewImageIcon wraps src. src must not be modified afterwards.
func NewImageIcon(src image.Image) *ImageIcon {
	return &ImageIcon{src: src}
}

// DecodeIcon decodes a PNG, JPEG or GIF image.
func DecodeIcon(data []byte) (*ImageIcon, error) {
	if len(data) == 0 {
		return nil, ErrEmptyIcon
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("view: decode icon: %w", err)
	}
	return NewImageIcon(img), nil
}

// Render implements Icon.
func (i *ImageIcon) Render(size int, mode Mode, state State) image.Image {
	scaled := resize.Resize(uint(size), uint(size), i.src, resize.Lanczos3)

	out := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := out.PixOffset(x, y)
			p := out.Pix[off : off+4 : off+4]
			applyMode(p, mode)
			if state == StateOff {
				p[3] /= 2
			}
		}
	}
	return out
}

func applyMode(p []uint8, mode Mode) {
	r, g, b := int(p[0]), int(p[1]), int(p[2])
	switch mode {
	case ModeDisabled:
		// ITU-R BT.601 luma.
		l := uint8((299*r + 587*g + 114*b) / 1000)
		p[0], p[1], p[2] = l, l, l
	case ModeActive:
		p[0] = uint8(r + (255-r)/4)
		p[1] = uint8(g + (255-g)/4)
		p[2] = uint8(b + (255-b)/4)
	case ModeSelected:
		p[0] = uint8((r*2 + 0x30) / 3)
		p[1] = uint8((g*2 + 0x60) / 3)
		p[2] = uint8((b*2 + 0xd0) / 3)
	}
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("view: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// IconSet maps share types to icons.
type IconSet map[shares.ShareType]Icon

// For returns the icon for t, falling back to the disk icon.
func (s IconSet) For(t shares.ShareType) Icon {
	if icon, ok := s[t]; ok {
		return icon
	}
	return s[shares.ShareTypeDisk]
}

// DefaultIcons returns built-in icons for every share type.
func DefaultIcons() IconSet {
	return IconSet{
		shares.ShareTypeDisk:    NewImageIcon(glyph(color.NRGBA{0x3b, 0x82, 0xf6, 0xff}, false)),
		shares.ShareTypePrinter: NewImageIcon(glyph(color.NRGBA{0x10, 0xb9, 0x81, 0xff}, true)),
		shares.ShareTypeIPC:     NewImageIcon(glyph(color.NRGBA{0x9c, 0xa3, 0xaf, 0xff}, false)),
	}
}

// LoadIcons returns DefaultIcons with any of disk.png, printer.png and
// ipc.png found in dir substituted.
func LoadIcons(dir string) (IconSet, error) {
	set := DefaultIcons()
	if dir == "" {
		return set, nil
	}
	for t := range set {
		path := filepath.Join(dir, string(t)+".png")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("view: read %s: %w", path, err)
		}
		icon, err := DecodeIcon(data)
		if err != nil {
			return nil, fmt.Errorf("view: %s: %w", path, err)
		}
		set[t] = icon
	}
	return set, nil
}

// glyph draws a 64×64 source image: a bordered tile, with a paper slot
// on top for printers.
func glyph(fill color.NRGBA, slot bool) image.Image {
	const n = 64
	img := image.NewNRGBA(image.Rect(0, 0, n, n))
	border := color.NRGBA{fill.R / 2, fill.G / 2, fill.B / 2, 0xff}

	top := 8
	if slot {
		top = 20
		draw.Draw(img, image.Rect(16, 4, 48, 22), &image.Uniform{color.NRGBA{0xff, 0xff, 0xff, 0xff}}, image.Point{}, draw.Src)
	}
	draw.Draw(img, image.Rect(4, top, 60, 56), &image.Uniform{border}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(7, top+3, 57, 53), &image.Uniform{fill}, image.Point{}, draw.Src)
	return img
}
