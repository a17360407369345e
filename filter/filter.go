/*
Package filter implements pixel-space filters over the flat pixel buffers
produced by the tga package. A filter never changes the number of pixels.
*/
package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
)

const (
	maxSigma = 10
	minSigma = 1
)

// Func transforms a width by height pixel buffer, returning a buffer of the
// same length
type Func func(pix []color.NRGBA, width, height int) []color.NRGBA

// Blur returns a Func applying GaussianBlur with the given amount
func Blur(amount float64) Func {
	return func(pix []color.NRGBA, width, height int) []color.NRGBA {
		return GaussianBlur(pix, width, height, amount)
	}
}

func transparent(pix []color.NRGBA) bool {
	for _, c := range pix {
		if c.A != 0 {
			return false
		}
	}
	return true
}

// Sigma maps a blur amount between 0 and 1 to the standard deviation of the
// Gaussian kernel
func Sigma(amount float64) float32 {
	amount = math.Max(0, math.Min(1, amount))
	return float32(math.Max(maxSigma*amount, minSigma))
}

// GaussianBlur blurs pix, a width by height buffer in row-major order. amount
// is clamped between 0 and 1, with 1 producing a near unrecognizable image.
func GaussianBlur(pix []color.NRGBA, width, height int, amount float64) []color.NRGBA {
	if width <= 0 || height <= 0 || len(pix) != width*height {
		return pix
	}

	// Buffers without an alpha channel carry zero alpha, blur them as opaque
	opaque := transparent(pix)

	src := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, c := range pix {
		if opaque {
			c.A = 0xff
		}
		src.SetNRGBA(i%width, i/width, c)
	}

	g := gift.New(gift.GaussianBlur(Sigma(amount)))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	out := make([]color.NRGBA, len(pix))
	for i := range out {
		c := dst.NRGBAAt(i%width, i/width)
		if opaque {
			c.A = 0
		}
		out[i] = c
	}

	return out
}
