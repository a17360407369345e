package tga

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size in bytes of the fixed TGA header
const HeaderSize = 18

// ImageType identifies how the pixel region of a TGA file is stored
type ImageType uint8

// Image types defined by the TGA format
const (
	NoImageData                   ImageType = 0
	UncompressedColorMapped       ImageType = 1
	UncompressedTrueColor         ImageType = 2
	UncompressedBlackAndWhite     ImageType = 3
	RunLengthEncodedColorMapped   ImageType = 9
	RunLengthEncodedTrueColor     ImageType = 10
	RunLengthEncodedBlackAndWhite ImageType = 11
)

var imageTypeNames = map[ImageType]string{
	NoImageData:                   "none",
	UncompressedColorMapped:       "colormapped",
	UncompressedTrueColor:         "truecolor",
	UncompressedBlackAndWhite:     "grayscale",
	RunLengthEncodedColorMapped:   "rle-colormapped",
	RunLengthEncodedTrueColor:     "rle-truecolor",
	RunLengthEncodedBlackAndWhite: "rle-grayscale",
}

// Valid reports whether t is one of the defined image types
func (t ImageType) Valid() bool {
	_, ok := imageTypeNames[t]
	return ok
}

func (t ImageType) String() string {
	if s, ok := imageTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ImageType(%d)", uint8(t))
}

// ParseImageType returns the image type with the given name as returned by
// String
func ParseImageType(s string) (ImageType, error) {
	for t, name := range imageTypeNames {
		if name == s {
			return t, nil
		}
	}
	return NoImageData, fmt.Errorf("tga: unknown image type %q", s)
}

func (t ImageType) colorMapped() bool {
	return t == UncompressedColorMapped || t == RunLengthEncodedColorMapped
}

func (t ImageType) trueColor() bool {
	return t == UncompressedTrueColor || t == RunLengthEncodedTrueColor
}

func (t ImageType) blackAndWhite() bool {
	return t == UncompressedBlackAndWhite || t == RunLengthEncodedBlackAndWhite
}

const (
	alphaDepthMask = 0x0f
	rightToLeftBit = 0x10
	topToBottomBit = 0x20
)

// Header is the fixed 18 byte record at the start of every TGA file. It
// implements the encoding.BinaryMarshaler and encoding.BinaryUnmarshaler
// interfaces.
type Header struct {
	IDLength           uint8
	ColorMapType       uint8
	ImageType          ImageType
	ColorMapFirstIndex uint16
	ColorMapLength     uint16
	ColorMapEntrySize  uint8
	XOrigin            uint16
	YOrigin            uint16
	Width              uint16
	Height             uint16
	PixelDepth         uint8
	ImageDescriptor    uint8
}

// AlphaDepth returns the number of attribute bits per pixel
func (h *Header) AlphaDepth() uint8 {
	return h.ImageDescriptor & alphaDepthMask
}

// RightToLeft reports whether pixels within a scan line are stored right to
// left
func (h *Header) RightToLeft() bool {
	return h.ImageDescriptor&rightToLeftBit != 0
}

// TopToBottom reports whether scan lines are stored top to bottom
func (h *Header) TopToBottom() bool {
	return h.ImageDescriptor&topToBottomBit != 0
}

func (h *Header) setAlphaDepth(depth uint8) {
	h.ImageDescriptor = h.ImageDescriptor&^alphaDepthMask | depth&alphaDepthMask
}

// PixelCount returns the number of pixels described by the header
func (h *Header) PixelCount() int {
	return int(h.Width) * int(h.Height)
}

// MarshalBinary encodes the header into binary form
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)

	b[0] = h.IDLength
	b[1] = h.ColorMapType
	b[2] = byte(h.ImageType)
	binary.LittleEndian.PutUint16(b[3:], h.ColorMapFirstIndex)
	binary.LittleEndian.PutUint16(b[5:], h.ColorMapLength)
	b[7] = h.ColorMapEntrySize
	binary.LittleEndian.PutUint16(b[8:], h.XOrigin)
	binary.LittleEndian.PutUint16(b[10:], h.YOrigin)
	binary.LittleEndian.PutUint16(b[12:], h.Width)
	binary.LittleEndian.PutUint16(b[14:], h.Height)
	b[16] = h.PixelDepth
	b[17] = h.ImageDescriptor

	return b, nil
}

// UnmarshalBinary decodes the header from binary form. A short buffer leaves
// the fields it does not cover zeroed.
func (h *Header) UnmarshalBinary(b []byte) error {
	var tmp [HeaderSize]byte
	copy(tmp[:], b)

	h.IDLength = tmp[0]
	h.ColorMapType = tmp[1]
	h.ImageType = ImageType(tmp[2])
	h.ColorMapFirstIndex = binary.LittleEndian.Uint16(tmp[3:])
	h.ColorMapLength = binary.LittleEndian.Uint16(tmp[5:])
	h.ColorMapEntrySize = tmp[7]
	h.XOrigin = binary.LittleEndian.Uint16(tmp[8:])
	h.YOrigin = binary.LittleEndian.Uint16(tmp[10:])
	h.Width = binary.LittleEndian.Uint16(tmp[12:])
	h.Height = binary.LittleEndian.Uint16(tmp[14:])
	h.PixelDepth = tmp[16]
	h.ImageDescriptor = tmp[17]

	return nil
}
