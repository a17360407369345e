package tga

import (
	"image"
	"image/color"
	"image/draw"
)

const maxColors = 256

// ColorMap is the palette of a color-mapped image
type ColorMap []color.NRGBA

// colorMapBytes returns the size in bytes of the color map described by h
func colorMapBytes(h *Header) int {
	return int(h.ColorMapLength) * ((int(h.ColorMapEntrySize) + 7) / 8)
}

// acceptColorMap reports whether the color map fields of h describe
// something that can be resolved with single byte indices
func acceptColorMap(h *Header) bool {
	if h.ColorMapLength > maxColors || h.PixelDepth != 8 {
		return false
	}
	_, err := colorMapFormat(h.ColorMapEntrySize)
	return err == nil
}

func decodeColorMap(b []byte, h *Header) (ColorMap, error) {
	f, err := colorMapFormat(h.ColorMapEntrySize)
	if err != nil {
		return nil, err
	}
	if len(b) < int(h.ColorMapLength)*f.size {
		return nil, ErrTruncated
	}
	return ColorMap(f.unpack(b, int(h.ColorMapLength))), nil
}

func (m ColorMap) encode(entrySize uint8) ([]byte, error) {
	f, err := colorMapFormat(entrySize)
	if err != nil {
		return nil, err
	}
	return f.pack(m), nil
}

// resolve maps each index through the color map
func (m ColorMap) resolve(indices []byte) ([]color.NRGBA, error) {
	pix := make([]color.NRGBA, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(m) {
			return nil, ErrCorrupt
		}
		pix[i] = m[idx]
	}
	return pix, nil
}

// paletteBuilder assigns dense indices to colors in the order they are first
// seen
type paletteBuilder struct {
	colors ColorMap
	index  map[color.NRGBA]int
}

func newPaletteBuilder() *paletteBuilder {
	return &paletteBuilder{
		index: make(map[color.NRGBA]int),
	}
}

func (p *paletteBuilder) add(c color.NRGBA) int {
	if i, ok := p.index[c]; ok {
		return i
	}
	p.colors = append(p.colors, c)
	p.index[c] = len(p.colors) - 1
	return len(p.colors) - 1
}

// rebuildColorMap builds a deduplicated palette from pix and returns it with
// the index of every pixel. More than 256 distinct colors is an error.
func rebuildColorMap(pix []color.NRGBA) (ColorMap, []byte, error) {
	p := newPaletteBuilder()
	indices := make([]byte, len(pix))
	for i, c := range pix {
		idx := p.add(c)
		if idx >= maxColors {
			return nil, nil, ErrColorMapOverflow
		}
		indices[i] = byte(idx)
	}
	return p.colors, indices, nil
}

func countColors(pix []color.NRGBA) int {
	seen := make(map[color.NRGBA]struct{})
	for _, c := range pix {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// quantizePixels reduces pix to at most 256 colors using q. The pixels are
// treated as a width by height image in storage order.
func quantizePixels(q draw.Quantizer, pix []color.NRGBA, width, height int) []color.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, c := range pix {
		m.SetNRGBA(i%width, i/width, c)
	}

	p := q.Quantize(make(color.Palette, 0, maxColors), m)

	// Cache lookups, the palette search is linear
	cache := make(map[color.NRGBA]color.NRGBA)
	out := make([]color.NRGBA, len(pix))
	for i, c := range pix {
		n, ok := cache[c]
		if !ok {
			n = color.NRGBAModel.Convert(p.Convert(c)).(color.NRGBA)
			cache[c] = n
		}
		out[i] = n
	}
	return out
}
