package tga

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bodgit/tga/metadata"
)

const (
	// FooterSize is the size in bytes of the TGA 2.0 file footer
	FooterSize = 26

	// Signature identifies a TGA 2.0 file footer
	Signature = "TRUEVISION-XFILE"

	signatureOffset = 8
)

// Footer is the optional TGA 2.0 trailer. The developer directory and
// extension area are only reachable through a footer; either may be nil when
// its offset is zero.
type Footer struct {
	ExtensionOffset          uint32
	DeveloperDirectoryOffset uint32

	Directory  *metadata.DeveloperDirectory
	Extensions *metadata.Extensions
}

// MarshalBinary encodes the footer into binary form using the offsets
// currently set
func (f *Footer) MarshalBinary() ([]byte, error) {
	b := make([]byte, FooterSize)

	binary.LittleEndian.PutUint32(b[0:], f.ExtensionOffset)
	binary.LittleEndian.PutUint32(b[4:], f.DeveloperDirectoryOffset)
	copy(b[signatureOffset:], Signature)
	b[FooterSize-2] = '.'
	b[FooterSize-1] = 0

	return b, nil
}

// UnmarshalBinary decodes the offsets from the footer in binary form. It
// returns errNoFooter if the signature does not match.
func (f *Footer) UnmarshalBinary(b []byte) error {
	if len(b) != FooterSize || !bytes.Equal(b[signatureOffset:signatureOffset+len(Signature)], []byte(Signature)) {
		return errNoFooter
	}

	f.ExtensionOffset = binary.LittleEndian.Uint32(b[0:])
	f.DeveloperDirectoryOffset = binary.LittleEndian.Uint32(b[4:])

	return nil
}

// readFooter looks for a footer in the last FooterSize bytes of r, which is
// size bytes long and whose pixel region ends at end. A missing footer is
// not an error and returns nil.
func readFooter(r io.ReaderAt, size, end int64) (*Footer, error) {
	if size-end < FooterSize {
		return nil, nil
	}

	b := make([]byte, FooterSize)
	if _, err := r.ReadAt(b, size-FooterSize); err != nil {
		return nil, err
	}

	f := new(Footer)
	if err := f.UnmarshalBinary(b); err != nil {
		return nil, nil
	}

	return f, nil
}

// readMetadata populates the developer directory and extension area from the
// offsets in the footer. r is size bytes long.
func (f *Footer) readMetadata(r io.ReaderAt, size int64) error {
	if f.DeveloperDirectoryOffset != 0 {
		d, err := metadata.ReadDeveloperDirectory(r, int64(f.DeveloperDirectoryOffset), size)
		if err != nil {
			return err
		}
		f.Directory = d
	}

	if f.ExtensionOffset != 0 {
		e, err := metadata.ReadExtensions(r, int64(f.ExtensionOffset))
		if err != nil {
			return err
		}
		f.Extensions = e
	}

	return nil
}

// writeTrailer writes the developer tag payloads, the developer directory,
// the extension area and finally the footer. offset is the absolute position
// in the file w is currently at.
func (f *Footer) writeTrailer(w io.Writer, offset uint32) error {
	f.DeveloperDirectoryOffset = 0
	f.ExtensionOffset = 0

	if f.Directory != nil {
		for _, t := range f.Directory.Tags {
			if _, err := w.Write(t.Data); err != nil {
				return err
			}
		}

		f.DeveloperDirectoryOffset = f.Directory.Relocate(offset)

		b, err := f.Directory.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		offset = f.DeveloperDirectoryOffset + uint32(len(b))
	}

	if f.Extensions != nil {
		// Postage stamp, scan line table and color correction table are
		// not carried over so their offsets would point at unrelated bytes
		e := *f.Extensions
		e.ColorCorrectionOffset = 0
		e.PostageStampOffset = 0
		e.ScanLineOffset = 0

		b, err := e.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		f.ExtensionOffset = offset
	}

	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(b)

	return err
}
