package tga

import (
	"encoding/binary"
	"fmt"
	"image/color"
)

// pixelFormat describes how a single pixel or color map entry is laid out on
// disk
type pixelFormat struct {
	size  int
	read  func(b []byte) color.NRGBA
	write func(b []byte, c color.NRGBA)
}

// Expand a 5-bit channel to 8 bits so that shifting back is lossless
func expand5(v uint16) uint8 {
	v &= 0x1f
	return uint8(v<<3 | v>>2)
}

// Packed as ARRRRRGG GGGBBBBB
func packed16(alpha bool) pixelFormat {
	return pixelFormat{
		size: 2,
		read: func(b []byte) color.NRGBA {
			v := binary.LittleEndian.Uint16(b)
			c := color.NRGBA{
				R: expand5(v >> 10),
				G: expand5(v >> 5),
				B: expand5(v),
			}
			if alpha && v&0x8000 != 0 {
				c.A = 0xff
			}
			return c
		},
		write: func(b []byte, c color.NRGBA) {
			v := uint16(c.R>>3)<<10 | uint16(c.G>>3)<<5 | uint16(c.B>>3)
			if alpha && c.A&0x80 != 0 {
				v |= 0x8000
			}
			binary.LittleEndian.PutUint16(b, v)
		},
	}
}

// B, G, R and optionally A. size may be larger than the number of channels
// stored, the remaining bytes are skipped on read and zeroed on write
func bgra(size int, alpha bool) pixelFormat {
	return pixelFormat{
		size: size,
		read: func(b []byte) color.NRGBA {
			c := color.NRGBA{R: b[2], G: b[1], B: b[0]}
			if alpha {
				c.A = b[3]
			}
			return c
		},
		write: func(b []byte, c color.NRGBA) {
			b[0], b[1], b[2] = c.B, c.G, c.R
			for i := 3; i < size; i++ {
				b[i] = 0
			}
			if alpha {
				b[3] = c.A
			}
		},
	}
}

// Luminance is kept in the red channel
func luminance(alpha bool) pixelFormat {
	size := 1
	if alpha {
		size = 2
	}
	return pixelFormat{
		size: size,
		read: func(b []byte) color.NRGBA {
			c := color.NRGBA{R: b[0]}
			if alpha {
				c.A = b[1]
			}
			return c
		},
		write: func(b []byte, c color.NRGBA) {
			b[0] = c.R
			if alpha {
				b[1] = c.A
			}
		},
	}
}

// trueColorFormat returns the pixel layout for a true-color image. Alpha is
// only stored when the descriptor declares attribute bits.
func trueColorFormat(h *Header) (pixelFormat, error) {
	alpha := h.AlphaDepth() != 0
	switch h.PixelDepth {
	case 16:
		return packed16(alpha), nil
	case 24:
		if alpha {
			return bgra(4, true), nil
		}
		return bgra(3, false), nil
	case 32:
		return bgra(4, alpha), nil
	default:
		return pixelFormat{}, fmt.Errorf("%w: %d-bit true-color", ErrUnsupported, h.PixelDepth)
	}
}

// blackAndWhiteFormat returns the pixel layout for a grayscale image. The
// second byte of a 16-bit pixel is only treated as alpha when the descriptor
// declares eight attribute bits.
func blackAndWhiteFormat(h *Header) (pixelFormat, error) {
	switch h.PixelDepth {
	case 8:
		return luminance(false), nil
	case 16:
		if h.AlphaDepth() == 8 {
			return luminance(true), nil
		}
		f := luminance(false)
		f.size = 2
		write := f.write
		f.write = func(b []byte, c color.NRGBA) {
			write(b, c)
			b[1] = 0
		}
		return f, nil
	default:
		return pixelFormat{}, fmt.Errorf("%w: %d-bit grayscale", ErrUnsupported, h.PixelDepth)
	}
}

// colorMapFormat returns the layout of a single color map entry
func colorMapFormat(entrySize uint8) (pixelFormat, error) {
	switch entrySize {
	case 15, 16:
		return packed16(false), nil
	case 24:
		return bgra(3, false), nil
	case 32:
		return bgra(4, true), nil
	default:
		return pixelFormat{}, fmt.Errorf("%w: %d-bit color map entry", ErrUnsupported, entrySize)
	}
}

// pixelFormatFor returns the layout used by the pixel region of a true-color
// or grayscale image
func pixelFormatFor(h *Header) (pixelFormat, error) {
	switch {
	case h.ImageType.trueColor():
		return trueColorFormat(h)
	case h.ImageType.blackAndWhite():
		return blackAndWhiteFormat(h)
	default:
		return pixelFormat{}, fmt.Errorf("%w: %s has no direct pixel layout", ErrUnsupported, h.ImageType)
	}
}

func (f pixelFormat) unpack(b []byte, n int) []color.NRGBA {
	pix := make([]color.NRGBA, n)
	for i := range pix {
		pix[i] = f.read(b[i*f.size:])
	}
	return pix
}

func (f pixelFormat) pack(pix []color.NRGBA) []byte {
	b := make([]byte, len(pix)*f.size)
	for i, c := range pix {
		f.write(b[i*f.size:], c)
	}
	return b
}

// Rec. 601 luma, rounded
func luma(c color.NRGBA) uint8 {
	return uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000)
}

func toBlackAndWhite(pix []color.NRGBA) []color.NRGBA {
	out := make([]color.NRGBA, len(pix))
	for i, c := range pix {
		out[i] = color.NRGBA{R: luma(c), A: c.A}
	}
	return out
}

func fromBlackAndWhite(pix []color.NRGBA) []color.NRGBA {
	out := make([]color.NRGBA, len(pix))
	for i, c := range pix {
		out[i] = color.NRGBA{R: c.R, G: c.R, B: c.R, A: c.A}
	}
	return out
}
