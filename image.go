package tga

import (
	"errors"
	"image"
	"image/color"
	"io"
)

// alphaStored reports whether the pixel buffer carries a meaningful alpha
// channel
func (c *Container) alphaStored() bool {
	h := &c.header
	if h.ImageType == UncompressedColorMapped && h.ColorMapEntrySize == 32 {
		return true
	}
	if h.ImageType.blackAndWhite() {
		return h.PixelDepth == 16 && h.AlphaDepth() == 8
	}
	return h.AlphaDepth() != 0
}

// Image returns the pixel buffer as an image with the origin at the top left,
// honouring the pixel ordering in the image descriptor. Grayscale is expanded
// to all three channels and images without alpha are opaque. It returns nil
// if the image has no pixel data.
func (c *Container) Image() *image.NRGBA {
	if c.pixels == nil {
		return nil
	}

	w, h := c.Width(), c.Height()
	m := image.NewNRGBA(image.Rect(0, 0, w, h))

	gray := c.header.ImageType.blackAndWhite()
	alpha := c.alphaStored()

	for i, p := range c.pixels {
		x, y := i%w, i/w
		if !c.header.TopToBottom() {
			y = h - 1 - y
		}
		if c.header.RightToLeft() {
			x = w - 1 - x
		}
		if gray {
			p.G, p.B = p.R, p.R
		}
		if !alpha {
			p.A = 0xff
		}
		m.SetNRGBA(x, y, p)
	}

	return m
}

// FromImage returns a 32-bit true-color container holding m, stored top to
// bottom
func FromImage(m image.Image, opts ...Option) (*Container, error) {
	b := m.Bounds()

	c, err := New(b.Dx(), b.Dy(), UncompressedTrueColor, 8, opts...)
	if err != nil {
		return nil, err
	}
	c.header.ImageDescriptor |= topToBottomBit

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c.pixels[i] = color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA)
			i++
		}
	}

	return c, nil
}

// Decode reads a TGA image from r and returns it as an image.Image
func Decode(r io.Reader) (image.Image, error) {
	c, err := Read(r)
	if err != nil {
		return nil, err
	}
	m := c.Image()
	if m == nil {
		return nil, errors.New("tga: no image data")
	}
	return m, nil
}

// DecodeConfig returns the color model and dimensions of a TGA image without
// decoding the entire image
func DecodeConfig(r io.Reader) (image.Config, error) {
	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return image.Config{}, ErrTruncated
	}

	var h Header
	if err := h.UnmarshalBinary(b[:]); err != nil {
		return image.Config{}, err
	}

	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(h.Width),
		Height:     int(h.Height),
	}, nil
}

// Encode writes the Image m to w as an uncompressed 32-bit true-color TGA
func Encode(w io.Writer, m image.Image) error {
	c, err := FromImage(m)
	if err != nil {
		return err
	}
	return c.Write(w, UncompressedTrueColor)
}
