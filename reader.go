package tga

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/bodgit/tga/rle"
)

type decoder struct {
	c    *Container
	data []byte
	pos  int
}

func (d *decoder) next(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) seek(pos int) error {
	if pos > len(d.data) {
		return ErrTruncated
	}
	d.pos = pos
	return nil
}

func (d *decoder) readHeader() {
	// A short file leaves the remaining fields zeroed, the stages that
	// follow fail on the missing data
	n := HeaderSize
	if n > len(d.data) {
		n = len(d.data)
	}
	_ = d.c.header.UnmarshalBinary(d.data[:n])
	d.pos = n
	d.c.state = HeaderParsed
}

func (d *decoder) readImageID() error {
	b, err := d.next(int(d.c.header.IDLength))
	if err != nil {
		return err
	}
	if len(b) > 0 {
		d.c.id = append([]byte(nil), b...)
	}
	return nil
}

func (d *decoder) readDirect(h *Header) error {
	f, err := pixelFormatFor(h)
	if err != nil {
		return err
	}

	b, err := d.next(h.PixelCount() * f.size)
	if err != nil {
		return err
	}
	d.c.pixels = f.unpack(b, h.PixelCount())

	return nil
}

func (d *decoder) readRunLength(h *Header) error {
	f, err := pixelFormatFor(h)
	if err != nil {
		return err
	}

	r := bytes.NewReader(d.data[d.pos:])
	b := make([]byte, h.PixelCount()*f.size)
	if err := rle.Decode(r, b, f.size); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	d.pos = len(d.data) - r.Len()
	d.c.pixels = f.unpack(b, h.PixelCount())

	return nil
}

func (d *decoder) readColorMapped(h *Header) error {
	start := HeaderSize + int(h.IDLength) + int(h.ColorMapFirstIndex)
	if err := d.seek(start); err != nil {
		return err
	}

	b, err := d.next(colorMapBytes(h))
	if err != nil {
		return err
	}
	m, err := decodeColorMap(b, h)
	if err != nil {
		return err
	}

	indices, err := d.next(h.PixelCount())
	if err != nil {
		return err
	}
	pix, err := m.resolve(indices)
	if err != nil {
		return err
	}

	d.c.colorMap = m
	d.c.pixels = pix

	return nil
}

// readPixels decodes the pixel region. A nil error with the state set to
// PixelsUnsupported means the image degraded to having no pixel data.
func (d *decoder) readPixels() error {
	h := &d.c.header

	var err error
	switch h.ImageType {
	case NoImageData:
	case UncompressedColorMapped:
		if !acceptColorMap(h) {
			d.c.logger.Printf("ignoring color map of %d %d-bit entries with %d-bit indices", h.ColorMapLength, h.ColorMapEntrySize, h.PixelDepth)
			h.ImageType = NoImageData
			d.c.state = PixelsUnsupported
			return nil
		}
		err = d.readColorMapped(h)
	case UncompressedTrueColor, UncompressedBlackAndWhite:
		err = d.readDirect(h)
	case RunLengthEncodedTrueColor, RunLengthEncodedBlackAndWhite:
		err = d.readRunLength(h)
	case RunLengthEncodedColorMapped:
		d.c.state = PixelsUnsupported
		return fmt.Errorf("%w: %s", ErrUnsupported, h.ImageType)
	default:
		d.c.logger.Printf("unrecognized image type %d", uint8(h.ImageType))
		t := h.ImageType
		h.ImageType = NoImageData
		d.c.state = PixelsUnsupported
		return fmt.Errorf("%w: %s", ErrUnsupported, t)
	}
	if err != nil {
		return err
	}

	d.c.state = PixelsParsed

	return nil
}

func (d *decoder) readTrailer() error {
	r := bytes.NewReader(d.data)

	f, err := readFooter(r, int64(len(d.data)), int64(d.pos))
	if err != nil {
		return err
	}
	if f == nil {
		d.c.logger.Println("no footer signature, assuming original TGA format")
		d.c.state = FooterAbsent
		return nil
	}
	d.c.state = FooterParsed

	d.c.logger.Printf("footer found, developer directory at %d, extension area at %d", f.DeveloperDirectoryOffset, f.ExtensionOffset)

	if err := f.readMetadata(r, int64(len(d.data))); err != nil {
		// The footer is dropped along with its metadata
		d.c.state = FooterAbsent
		return fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	d.c.footer = f
	d.c.state = MetadataParsed

	return nil
}

func (d *decoder) decode() error {
	d.readHeader()
	if d.pos < HeaderSize {
		return ErrTruncated
	}

	if err := d.readImageID(); err != nil {
		return err
	}

	if err := d.readPixels(); err != nil {
		return err
	}

	return d.readTrailer()
}

// Read decodes a TGA image from r. If the header could be read but a later
// stage fails, the returned container holds everything decoded up to that
// stage alongside the error.
func Read(r io.Reader, opts ...Option) (*Container, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	d := decoder{
		c:    newContainer(opts),
		data: data,
	}

	if err := d.decode(); err != nil {
		return d.c, err
	}

	return d.c, nil
}
