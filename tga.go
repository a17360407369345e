/*
Package tga implements a Truevision TGA image reader and writer.

A file is decoded into a Container which owns the 18 byte header, the optional
image identifier and color map, a flat pixel buffer and, for TGA 2.0 files,
the footer along with the developer directory and extension area it points
to. The pixel buffer holds one color.NRGBA per pixel in the order the pixels
are stored on disk; grayscale images keep their luminance in the red channel.

Uncompressed color-mapped, true-color and grayscale images are supported
along with the run-length encoded true-color and grayscale variants.
Run-length encoded color-mapped images are not.
*/
package tga

import (
	"bufio"
	"errors"
	"image/color"
	"image/draw"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
)

var (
	// ErrTruncated is returned when the file ends before a structure it
	// declares
	ErrTruncated = errors.New("tga: not enough image data")

	// ErrUnsupported is returned for image types and pixel layouts that
	// cannot be decoded or encoded
	ErrUnsupported = errors.New("tga: unsupported format")

	// ErrColorMapOverflow is returned when encoding a color-mapped image
	// from a buffer with more than 256 distinct colors
	ErrColorMapOverflow = errors.New("tga: more than 256 colors")

	// ErrPixelCount is returned when a pixel buffer does not match the
	// image dimensions
	ErrPixelCount = errors.New("tga: pixel count does not match dimensions")

	// ErrCorrupt is returned when the pixel data is inconsistent with the
	// header
	ErrCorrupt = errors.New("tga: corrupt image data")

	errNoFooter = errors.New("tga: no footer signature")
)

// State records how far decoding of a Container progressed
type State int

// Decoding states in the order they are reached
const (
	Unloaded State = iota
	HeaderParsed
	PixelsParsed
	PixelsUnsupported
	FooterAbsent
	FooterParsed
	MetadataParsed
)

var stateNames = [...]string{
	"unloaded",
	"header parsed",
	"pixels parsed",
	"pixels unsupported",
	"footer absent",
	"footer parsed",
	"metadata parsed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Container is a decoded TGA image. It is not safe for concurrent use.
type Container struct {
	header   Header
	id       []byte
	colorMap ColorMap
	pixels   []color.NRGBA
	footer   *Footer
	state    State

	logger    *log.Logger
	quantizer draw.Quantizer
}

// Option configures a Container
type Option func(*Container)

// WithLogger sets the logger used to report benign decoding events such as a
// missing footer
func WithLogger(logger *log.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithQuantizer allows a buffer with more than 256 colors to be encoded as a
// color-mapped image by first reducing it with q
func WithQuantizer(q draw.Quantizer) Option {
	return func(c *Container) {
		c.quantizer = q
	}
}

func newContainer(opts []Option) *Container {
	c := &Container{
		logger: log.New(ioutil.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New returns a container holding a width by height image of the given type
// with every pixel zeroed. alphaDepth is the number of attribute bits per
// pixel.
func New(width, height int, t ImageType, alphaDepth uint8, opts ...Option) (*Container, error) {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return nil, errors.New("tga: invalid dimensions")
	}

	c := newContainer(opts)
	c.header = Header{
		ImageType: t,
		Width:     uint16(width),
		Height:    uint16(height),
	}
	c.header.setAlphaDepth(alphaDepth)

	switch {
	case t.trueColor():
		c.header.PixelDepth = 24
		if alphaDepth != 0 {
			c.header.PixelDepth = 32
		}
	case t.blackAndWhite():
		c.header.PixelDepth = 8
		if alphaDepth != 0 {
			c.header.PixelDepth = 16
		}
	case t == UncompressedColorMapped:
		c.header.PixelDepth = 8
		c.header.ColorMapType = 1
		c.header.ColorMapEntrySize = 24
		if alphaDepth != 0 {
			c.header.ColorMapEntrySize = 32
		}
	default:
		return nil, ErrUnsupported
	}

	c.pixels = make([]color.NRGBA, width*height)
	if t == UncompressedColorMapped {
		c.colorMap, _, _ = rebuildColorMap(c.pixels)
		c.header.ColorMapLength = uint16(len(c.colorMap))
	}
	c.state = PixelsParsed

	return c, nil
}

// Load reads the TGA image found at path
func Load(path string, opts ...Option) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f, opts...)
}

// Save writes the image to path encoded as the given image type. The image
// is written to a temporary file in the same directory which replaces path
// only once it is complete, so a failed save leaves any existing file intact.
func (c *Container) Save(path string, t ImageType) (err error) {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	f, err := ioutil.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	w := bufio.NewWriter(f)
	if err := c.Write(w, t); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Chmod(mode); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), path)
}

// Header returns a copy of the image header
func (c *Container) Header() Header {
	return c.header
}

// ImageID returns the image identification field
func (c *Container) ImageID() []byte {
	return c.id
}

// SetImageID replaces the image identification field, which can be at most
// 255 bytes
func (c *Container) SetImageID(id []byte) error {
	if len(id) > 0xff {
		return errors.New("tga: image identifier too long")
	}
	c.id = id
	c.header.IDLength = uint8(len(id))
	return nil
}

// ColorMap returns the color map, or nil if the image is not color-mapped
func (c *Container) ColorMap() ColorMap {
	return c.colorMap
}

// Footer returns the TGA 2.0 footer, or nil if the file did not have one
func (c *Container) Footer() *Footer {
	return c.footer
}

// SetFooter replaces the footer and with it any metadata. A nil footer
// produces a file without one.
func (c *Container) SetFooter(f *Footer) {
	c.footer = f
}

// State returns how far decoding progressed
func (c *Container) State() State {
	return c.state
}

// Width returns the width of the image in pixels
func (c *Container) Width() int {
	return int(c.header.Width)
}

// Height returns the height of the image in pixels
func (c *Container) Height() int {
	return int(c.header.Height)
}

// Pixels returns the pixel buffer in storage order. It is nil if the image
// has no pixel data.
func (c *Container) Pixels() []color.NRGBA {
	return c.pixels
}

// ReplacePixels hands ownership of pix to the container. It must hold
// exactly width times height pixels.
func (c *Container) ReplacePixels(pix []color.NRGBA) error {
	if len(pix) != c.header.PixelCount() {
		return ErrPixelCount
	}
	c.pixels = pix
	return nil
}
