/*
Package metadata implements the developer directory and extension area that
TGA 2.0 files locate through offsets stored in the file footer.

Neither structure is interpreted; developer tag payloads are carried as opaque
bytes and the extension area is read and written verbatim.
*/
package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	tagSize = 10

	// ExtensionSize is the size in bytes of a TGA 2.0 extension area
	ExtensionSize = 495

	maxTags = 0xffff
)

var errInsufficient = errors.New("metadata: insufficient data")

// Tag describes one entry in the developer directory. Data holds the payload
// found at Offset when the directory was read.
type Tag struct {
	ID     uint16
	Offset uint32
	Size   uint32
	Data   []byte
}

// DeveloperDirectory is the developer area directory. It implements the
// encoding.BinaryMarshaler and encoding.BinaryUnmarshaler interfaces for the
// directory table itself.
type DeveloperDirectory struct {
	Tags []Tag
}

// Len returns the size in bytes of the encoded directory table
func (d *DeveloperDirectory) Len() int {
	return 2 + tagSize*len(d.Tags)
}

// MarshalBinary encodes the directory table into binary form
func (d *DeveloperDirectory) MarshalBinary() ([]byte, error) {
	if len(d.Tags) > maxTags {
		return nil, fmt.Errorf("metadata: more than %d tags", maxTags)
	}

	b := new(bytes.Buffer)

	if err := binary.Write(b, binary.LittleEndian, uint16(len(d.Tags))); err != nil {
		return nil, err
	}

	var tmp [tagSize]byte
	for _, t := range d.Tags {
		binary.LittleEndian.PutUint16(tmp[0:], t.ID)
		binary.LittleEndian.PutUint32(tmp[2:], t.Offset)
		binary.LittleEndian.PutUint32(tmp[6:], t.Size)
		if _, err := b.Write(tmp[:]); err != nil {
			return nil, err
		}
	}

	return b.Bytes(), nil
}

// UnmarshalBinary decodes the directory table from binary form. Tag payloads
// are left empty.
func (d *DeveloperDirectory) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)

	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return errInsufficient
	}

	tags := make([]Tag, n)
	for i := range tags {
		if err := binary.Read(r, binary.LittleEndian, &tags[i].ID); err != nil {
			return errInsufficient
		}
		if err := binary.Read(r, binary.LittleEndian, &tags[i].Offset); err != nil {
			return errInsufficient
		}
		if err := binary.Read(r, binary.LittleEndian, &tags[i].Size); err != nil {
			return errInsufficient
		}
	}
	d.Tags = tags

	return nil
}

// ReadDeveloperDirectory reads the directory table found at offset in r,
// which is size bytes long, followed by the payload of every tag.
func ReadDeveloperDirectory(r io.ReaderAt, offset, size int64) (*DeveloperDirectory, error) {
	var count [2]byte
	if _, err := r.ReadAt(count[:], offset); err != nil {
		return nil, errInsufficient
	}

	b := make([]byte, 2+tagSize*int(binary.LittleEndian.Uint16(count[:])))
	if _, err := r.ReadAt(b, offset); err != nil {
		return nil, errInsufficient
	}

	d := new(DeveloperDirectory)
	if err := d.UnmarshalBinary(b); err != nil {
		return nil, err
	}

	for i := range d.Tags {
		t := &d.Tags[i]
		if t.Size == 0 {
			continue
		}
		if int64(t.Offset)+int64(t.Size) > size {
			return nil, fmt.Errorf("metadata: tag %d: %w", t.ID, errInsufficient)
		}
		t.Data = make([]byte, t.Size)
		if _, err := r.ReadAt(t.Data, int64(t.Offset)); err != nil {
			return nil, fmt.Errorf("metadata: tag %d: %w", t.ID, errInsufficient)
		}
	}

	return d, nil
}

// Relocate assigns new offsets to every tag as if the payloads were written
// back to back starting at offset, and returns the offset immediately after
// the last payload.
func (d *DeveloperDirectory) Relocate(offset uint32) uint32 {
	for i := range d.Tags {
		t := &d.Tags[i]
		t.Size = uint32(len(t.Data))
		if t.Size == 0 {
			t.Offset = 0
			continue
		}
		t.Offset = offset
		offset += t.Size
	}
	return offset
}

// Extensions is the TGA 2.0 extension area. The field layout matches the
// on-disk layout exactly so it can be read and written with encoding/binary.
type Extensions struct {
	Size                  uint16
	AuthorName            [41]byte
	AuthorComment         [324]byte
	Timestamp             [6]uint16 // month, day, year, hour, minute, second
	JobID                 [41]byte
	JobTime               [3]uint16 // hours, minutes, seconds
	SoftwareID            [41]byte
	SoftwareVersion       uint16
	SoftwareLetter        byte
	KeyColor              uint32
	PixelAspectRatio      [2]uint16
	Gamma                 [2]uint16
	ColorCorrectionOffset uint32
	PostageStampOffset    uint32
	ScanLineOffset        uint32
	AttributesType        uint8
}

// MarshalBinary encodes the extension area into binary form
func (e *Extensions) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)
	if err := binary.Write(b, binary.LittleEndian, e); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// UnmarshalBinary decodes the extension area from binary form
func (e *Extensions) UnmarshalBinary(b []byte) error {
	if len(b) < ExtensionSize {
		return errInsufficient
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, e)
}

// ReadExtensions reads the extension area found at offset in r
func ReadExtensions(r io.ReaderAt, offset int64) (*Extensions, error) {
	b := make([]byte, ExtensionSize)
	if _, err := r.ReadAt(b, offset); err != nil {
		return nil, errInsufficient
	}

	e := new(Extensions)
	if err := e.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return e, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

// Author returns the author name with any padding removed
func (e *Extensions) Author() string {
	return cString(e.AuthorName[:])
}

// Software returns the software identifier with any padding removed
func (e *Extensions) Software() string {
	return cString(e.SoftwareID[:])
}

// Time returns the date and time stamp. The zero time is returned if the
// stamp is unset.
func (e *Extensions) Time() time.Time {
	ts := e.Timestamp
	if ts == [6]uint16{} {
		return time.Time{}
	}
	return time.Date(int(ts[2]), time.Month(ts[0]), int(ts[1]), int(ts[3]), int(ts[4]), int(ts[5]), 0, time.UTC)
}
