/*
Package rle implements the run-length packet scheme used by Truevision TGA
images.

Pixels are treated as opaque fixed-size byte groups. Each packet starts with a
control byte; if bit 7 is set the packet is a run and a single pixel follows
which is repeated (control & 0x7f) + 1 times, otherwise the packet is raw and
that many pixels follow verbatim. A packet never describes more than 128
pixels and the encoder never lets a packet cross from one scan line into the
next.
*/
package rle

import (
	"bytes"
	"errors"
	"io"
)

const (
	runFlag   = 0x80
	countMask = 0x7f

	// MaxPacket is the largest number of pixels a single packet can hold
	MaxPacket = countMask + 1
)

var (
	errPixelSize = errors.New("rle: invalid pixel size")
	errWidth     = errors.New("rle: invalid scan line width")

	// ErrOverflow is returned when a packet describes more pixels than
	// remain in the destination
	ErrOverflow = errors.New("rle: packet overflows image")
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Decode reads packets from r until dst, holding len(dst)/size pixels of size
// bytes each, is completely filled.
func Decode(r io.Reader, dst []byte, size int) error {
	if size <= 0 || len(dst)%size != 0 {
		return errPixelSize
	}

	var control [1]byte
	for i := 0; i < len(dst); {
		if err := readFull(r, control[:]); err != nil {
			return err
		}

		n := (int(control[0]&countMask) + 1) * size
		if i+n > len(dst) {
			return ErrOverflow
		}

		if control[0]&runFlag != 0 {
			if err := readFull(r, dst[i:i+size]); err != nil {
				return err
			}
			for j := i + size; j < i+n; j += size {
				copy(dst[j:j+size], dst[i:i+size])
			}
		} else {
			if err := readFull(r, dst[i:i+n]); err != nil {
				return err
			}
		}
		i += n
	}

	return nil
}

type encoder struct {
	w    io.Writer
	pix  []byte
	size int
}

func (e *encoder) equal(a, b int) bool {
	return bytes.Equal(e.pix[a*e.size:(a+1)*e.size], e.pix[b*e.size:(b+1)*e.size])
}

// packet returns the length of the packet starting at pixel i and whether it
// is a run, never reaching beyond end
func (e *encoder) packet(i, end int) (int, bool) {
	if i+1 < end && e.equal(i, i+1) {
		n := 2
		for n < MaxPacket && i+n < end && e.equal(i, i+n) {
			n++
		}
		return n, true
	}

	n := 1
	for n < MaxPacket && i+n < end {
		// Leave a pair of equal pixels for the next run packet
		if i+n+1 < end && e.equal(i+n, i+n+1) {
			break
		}
		n++
	}
	return n, false
}

func (e *encoder) encode(width int) error {
	pixels := len(e.pix) / e.size
	for row := 0; row < pixels; row += width {
		end := row + width
		if end > pixels {
			end = pixels
		}
		for i := row; i < end; {
			n, run := e.packet(i, end)

			var err error
			if run {
				if _, err = e.w.Write([]byte{runFlag | byte(n-1)}); err == nil {
					_, err = e.w.Write(e.pix[i*e.size : (i+1)*e.size])
				}
			} else {
				if _, err = e.w.Write([]byte{byte(n - 1)}); err == nil {
					_, err = e.w.Write(e.pix[i*e.size : (i+n)*e.size])
				}
			}
			if err != nil {
				return err
			}

			i += n
		}
	}
	return nil
}

// Encode writes pix, a sequence of pixels of size bytes each arranged in scan
// lines of width pixels, to w as run-length packets.
func Encode(w io.Writer, pix []byte, size, width int) error {
	if size <= 0 || len(pix)%size != 0 {
		return errPixelSize
	}
	if width <= 0 {
		return errWidth
	}

	e := encoder{w: w, pix: pix, size: size}

	return e.encode(width)
}
