package pipeline

import (
	"context"
	"errors"
	"image/color"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/bodgit/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) Record(path string, c *tga.Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func writeImage(t *testing.T, path string, fill color.NRGBA) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	c, err := tga.New(4, 3, tga.UncompressedTrueColor, 0)
	require.NoError(t, err)

	pix := make([]color.NRGBA, 12)
	for i := range pix {
		pix[i] = fill
	}
	require.NoError(t, c.ReplacePixels(pix))
	require.NoError(t, c.Save(path, tga.UncompressedTrueColor))
}

func tree(t *testing.T) string {
	t.Helper()

	src := t.TempDir()
	writeImage(t, filepath.Join(src, "a.tga"), color.NRGBA{R: 0x10})
	writeImage(t, filepath.Join(src, "sub", "b.TGA"), color.NRGBA{G: 0x20})
	writeImage(t, filepath.Join(src, ".hidden.tga"), color.NRGBA{B: 0x30})
	writeImage(t, filepath.Join(src, ".cache", "c.tga"), color.NRGBA{B: 0x40})
	require.NoError(t, ioutil.WriteFile(filepath.Join(src, "notes.txt"), []byte("x"), 0o644))

	return src
}

func TestRun(t *testing.T) {
	src := tree(t)
	dst := t.TempDir()

	r := new(recorder)
	p := New(WithWorkers(2), WithImageType(tga.RunLengthEncodedTrueColor), WithRecorder(r))

	invert := func(c *tga.Container) error {
		pix := c.Pixels()
		for i := range pix {
			pix[i].R = 0xff - pix[i].R
		}
		return c.ReplacePixels(pix)
	}

	require.NoError(t, p.Run(context.Background(), src, dst, invert))

	sort.Strings(r.paths)
	assert.Equal(t, []string{
		filepath.Join(dst, "a.tga"),
		filepath.Join(dst, "sub", "b.TGA"),
	}, r.paths)

	c, err := tga.Load(filepath.Join(dst, "a.tga"))
	require.NoError(t, err)
	assert.Equal(t, tga.RunLengthEncodedTrueColor, c.Header().ImageType)
	assert.Equal(t, color.NRGBA{R: 0xef}, c.Pixels()[0])

	c, err = tga.Load(filepath.Join(dst, "sub", "b.TGA"))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x20}, c.Pixels()[11])

	for _, name := range []string{".hidden.tga", filepath.Join(".cache", "c.tga"), "notes.txt"} {
		_, err := os.Stat(filepath.Join(dst, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestRunKeepsType(t *testing.T) {
	src := tree(t)
	dst := t.TempDir()

	require.NoError(t, New().Run(context.Background(), src, dst, nil))

	c, err := tga.Load(filepath.Join(dst, "a.tga"))
	require.NoError(t, err)
	assert.Equal(t, tga.UncompressedTrueColor, c.Header().ImageType)
	assert.Equal(t, color.NRGBA{R: 0x10}, c.Pixels()[0])
}

func TestRunError(t *testing.T) {
	src := tree(t)
	dst := t.TempDir()

	errBoom := errors.New("boom")
	err := New(WithWorkers(1)).Run(context.Background(), src, dst, func(*tga.Container) error {
		return errBoom
	})
	assert.True(t, errors.Is(err, errBoom))
}

func TestRunSkipsUnsupported(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	// A run-length encoded color-mapped header with no pixel data
	b := make([]byte, tga.HeaderSize)
	b[2] = byte(tga.RunLengthEncodedColorMapped)
	b[12], b[14], b[16] = 1, 1, 8
	require.NoError(t, ioutil.WriteFile(filepath.Join(src, "indexed.tga"), b, 0o644))

	require.NoError(t, New().Run(context.Background(), src, dst, nil))

	_, err := os.Stat(filepath.Join(dst, "indexed.tga"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCancelled(t *testing.T) {
	src := tree(t)
	dst := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, New().Run(ctx, src, dst, nil))
}

func TestRunMissing(t *testing.T) {
	err := New().Run(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), nil)
	assert.True(t, os.IsNotExist(err))
}
