package tga

import (
	"fmt"
	"image/color"
	"io"

	"github.com/bodgit/tga/rle"
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type encoder struct {
	w *countingWriter

	header   Header
	pixels   []color.NRGBA
	colorMap ColorMap
	indices  []byte
}

func clearColorMap(h *Header) {
	h.ColorMapType = 0
	h.ColorMapFirstIndex = 0
	h.ColorMapLength = 0
	h.ColorMapEntrySize = 0
}

// prepare rewrites the header for the target image type and converts the
// pixel buffer so that the layout derived from the header is self-consistent
func (c *Container) prepare(t ImageType) (*encoder, error) {
	e := &encoder{
		header: c.header,
		pixels: c.pixels,
	}
	h := &e.header

	if t != NoImageData && len(e.pixels) != h.PixelCount() {
		return nil, ErrPixelCount
	}

	source := h.ImageType
	if source == UncompressedColorMapped && h.ColorMapEntrySize == 32 && h.AlphaDepth() == 0 {
		// The palette carried the alpha channel
		h.setAlphaDepth(8)
	}
	h.ImageType = t
	h.IDLength = uint8(len(c.id))

	switch {
	case t == NoImageData:
		clearColorMap(h)
		e.pixels = nil
	case t.trueColor():
		if source.blackAndWhite() {
			e.pixels = fromBlackAndWhite(e.pixels)
		}
		if !source.trueColor() || (h.PixelDepth != 16 && h.PixelDepth != 24 && h.PixelDepth != 32) {
			h.PixelDepth = 24
			if h.AlphaDepth() != 0 {
				h.PixelDepth = 32
			}
		}
		clearColorMap(h)
	case t.blackAndWhite():
		if !source.blackAndWhite() {
			e.pixels = toBlackAndWhite(e.pixels)
		}
		if !source.blackAndWhite() || (h.PixelDepth != 8 && h.PixelDepth != 16) {
			h.PixelDepth = 8
			if h.AlphaDepth() == 8 {
				h.PixelDepth = 16
			}
		}
		if h.PixelDepth == 8 {
			h.setAlphaDepth(0)
		}
		clearColorMap(h)
	case t == UncompressedColorMapped:
		if source.blackAndWhite() {
			e.pixels = fromBlackAndWhite(e.pixels)
		}
		if err := c.rebuild(e); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupported, t)
	}

	return e, nil
}

// rebuild derives a fresh color map from the pixel buffer
func (c *Container) rebuild(e *encoder) error {
	h := &e.header

	alpha := h.AlphaDepth() != 0
	pix := e.pixels
	if !alpha {
		// Alpha is not stored so must not produce distinct entries
		pix = make([]color.NRGBA, len(e.pixels))
		for i, p := range e.pixels {
			p.A = 0
			pix[i] = p
		}
	}

	m, indices, err := rebuildColorMap(pix)
	if err == ErrColorMapOverflow && c.quantizer != nil {
		c.logger.Printf("quantizing %d colors to %d", countColors(pix), maxColors)
		pix = quantizePixels(c.quantizer, pix, int(h.Width), int(h.Height))
		m, indices, err = rebuildColorMap(pix)
	}
	if err != nil {
		return err
	}

	h.ColorMapType = 1
	h.ColorMapFirstIndex = 0
	h.ColorMapLength = uint16(len(m))
	h.ColorMapEntrySize = 24
	if alpha {
		h.ColorMapEntrySize = 32
	}
	h.PixelDepth = 8

	e.pixels = pix
	e.colorMap = m
	e.indices = indices

	return nil
}

func (e *encoder) write(b []byte) error {
	_, err := e.w.Write(b)
	return err
}

func (e *encoder) writePixels() error {
	h := &e.header

	switch h.ImageType {
	case NoImageData:
		return nil
	case UncompressedColorMapped:
		b, err := e.colorMap.encode(h.ColorMapEntrySize)
		if err != nil {
			return err
		}
		if err := e.write(b); err != nil {
			return err
		}
		return e.write(e.indices)
	case UncompressedTrueColor, UncompressedBlackAndWhite:
		f, err := pixelFormatFor(h)
		if err != nil {
			return err
		}
		return e.write(f.pack(e.pixels))
	case RunLengthEncodedTrueColor, RunLengthEncodedBlackAndWhite:
		f, err := pixelFormatFor(h)
		if err != nil {
			return err
		}
		return rle.Encode(e.w, f.pack(e.pixels), f.size, int(h.Width))
	default:
		return fmt.Errorf("%w: cannot encode %s", ErrUnsupported, h.ImageType)
	}
}

// Write encodes the image to w as the given image type. The header is
// rewritten to match and, for a color-mapped target, the color map is rebuilt
// from the current pixel buffer. The container is only updated once the
// image has been written successfully.
func (c *Container) Write(w io.Writer, t ImageType) error {
	e, err := c.prepare(t)
	if err != nil {
		return err
	}
	e.w = &countingWriter{w: w}

	b, err := e.header.MarshalBinary()
	if err != nil {
		return err
	}
	if err := e.write(b); err != nil {
		return err
	}

	if err := e.write(c.id); err != nil {
		return err
	}

	if err := e.writePixels(); err != nil {
		return err
	}

	if c.footer != nil {
		if e.w.n > 0xffffffff {
			return fmt.Errorf("tga: image too large for a footer")
		}
		if err := c.footer.writeTrailer(e.w, uint32(e.w.n)); err != nil {
			return err
		}
	}

	c.header = e.header
	c.pixels = e.pixels
	c.colorMap = e.colorMap

	return nil
}
