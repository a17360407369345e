package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/tga"
	"github.com/bodgit/tga/catalog"
	"github.com/bodgit/tga/filter"
	"github.com/bodgit/tga/pipeline"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/urfave/cli/v2"
	"golang.org/x/image/bmp"
)

const defaultType = "truecolor"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func containerOptions(c *cli.Context) []tga.Option {
	opts := []tga.Option{tga.WithLogger(newLogger(c))}
	if c.Bool("quantize") {
		opts = append(opts, tga.WithQuantizer(quantize.MedianCutQuantizer{}))
	}
	return opts
}

// imageType returns the value of the type flag or def if it was not set
func imageType(c *cli.Context, def tga.ImageType) (tga.ImageType, error) {
	if !c.IsSet("type") {
		return def, nil
	}
	return tga.ParseImageType(c.String("type"))
}

func isTGA(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".tga")
}

func load(file string, opts []tga.Option) (*tga.Container, error) {
	if isTGA(file) {
		return tga.Load(file, opts...)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	return tga.FromImage(m, opts...)
}

func encode(w io.Writer, ext string, m image.Image) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, m)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, m, nil)
	case ".gif":
		return gif.Encode(w, m, nil)
	case ".bmp":
		return bmp.Encode(w, m)
	default:
		return fmt.Errorf("unsupported output format %q", ext)
	}
}

func save(file string, img *tga.Container, t tga.ImageType) (err error) {
	if isTGA(file) {
		return img.Save(file, t)
	}

	m := img.Image()
	if m == nil {
		return errors.New("no image data")
	}

	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return encode(f, filepath.Ext(file), m)
}

func info(w io.Writer, file string, img *tga.Container) {
	h := img.Header()

	fmt.Fprintf(w, "File:        %s\n", file)
	fmt.Fprintf(w, "Type:        %s\n", h.ImageType)
	fmt.Fprintf(w, "Dimensions:  %dx%d\n", h.Width, h.Height)
	fmt.Fprintf(w, "Origin:      %d,%d\n", h.XOrigin, h.YOrigin)
	fmt.Fprintf(w, "Pixel depth: %d\n", h.PixelDepth)
	fmt.Fprintf(w, "Alpha depth: %d\n", h.AlphaDepth())
	order := "bottom-to-top"
	if h.TopToBottom() {
		order = "top-to-bottom"
	}
	if h.RightToLeft() {
		order += ", right-to-left"
	}
	fmt.Fprintf(w, "Ordering:    %s\n", order)
	if h.ColorMapType != 0 {
		fmt.Fprintf(w, "Color map:   %d %d-bit entries from %d\n", h.ColorMapLength, h.ColorMapEntrySize, h.ColorMapFirstIndex)
	}
	if id := img.ImageID(); len(id) > 0 {
		fmt.Fprintf(w, "Image ID:    %q\n", id)
	}
	fmt.Fprintf(w, "State:       %s\n", img.State())

	f := img.Footer()
	if f == nil {
		return
	}
	if f.Directory != nil {
		fmt.Fprintf(w, "Tags:        %d\n", len(f.Directory.Tags))
	}
	if e := f.Extensions; e != nil {
		fmt.Fprintf(w, "Author:      %s\n", e.Author())
		fmt.Fprintf(w, "Software:    %s\n", e.Software())
		if ts := e.Time(); !ts.IsZero() {
			fmt.Fprintf(w, "Timestamp:   %s\n", ts)
		}
	}
}

func main() {
	app := cli.NewApp()

	app.Name = "tga"
	app.Usage = "Truevision TGA image utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			EnvVars: []string{"TGA_VERBOSE"},
			Usage:   "increase verbosity",
		},
		&cli.BoolFlag{
			Name:    "quantize",
			EnvVars: []string{"TGA_QUANTIZE"},
			Usage:   "reduce images with more than 256 colors when saving as colormapped",
		},
	}

	typeFlag := &cli.StringFlag{
		Name:    "type",
		Aliases: []string{"t"},
		EnvVars: []string{"TGA_TYPE"},
		Value:   defaultType,
		Usage:   "output image type, one of none, colormapped, truecolor, grayscale, rle-truecolor or rle-grayscale",
	}

	amountFlag := &cli.Float64Flag{
		Name:  "amount",
		Value: 0.5,
		Usage: "blur strength between 0.0 and 1.0",
	}

	app.Commands = []*cli.Command{
		{
			Name:      "info",
			Usage:     "Describe TGA images",
			ArgsUsage: "FILE...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				for _, file := range c.Args().Slice() {
					img, err := tga.Load(file, containerOptions(c)...)
					if img == nil {
						return cli.NewExitError(err, 1)
					}
					info(os.Stdout, file, img)
					if err != nil {
						fmt.Fprintf(os.Stdout, "Error:       %v\n", err)
					}
				}

				return nil
			},
		},
		{
			Name:        "convert",
			Usage:       "Convert between TGA types and other image formats",
			Description: "The format of each file is chosen by its extension; .tga, .png, .jpg, .gif and .bmp are supported.",
			ArgsUsage:   "SOURCE TARGET",
			Flags:       []cli.Flag{typeFlag},
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				img, err := load(c.Args().Get(0), containerOptions(c))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				t, err := imageType(c, tga.UncompressedTrueColor)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := save(c.Args().Get(1), img, t); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "blur",
			Usage:     "Apply a Gaussian blur to a TGA image",
			ArgsUsage: "SOURCE TARGET",
			Flags:     []cli.Flag{typeFlag, amountFlag},
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				img, err := load(c.Args().Get(0), containerOptions(c))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				blur := filter.Blur(c.Float64("amount"))
				if err := img.ReplacePixels(blur(img.Pixels(), img.Width(), img.Height())); err != nil {
					return cli.NewExitError(err, 1)
				}

				t, err := imageType(c, img.Header().ImageType)
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				if err := save(c.Args().Get(1), img, t); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "batch",
			Usage:       "Blur or convert every TGA image in a directory",
			Description: "Images keep their relative path below the target directory.",
			ArgsUsage:   "SOURCE TARGET",
			Flags: []cli.Flag{
				typeFlag,
				&cli.Float64Flag{
					Name:  "amount",
					Usage: "blur strength between 0.0 and 1.0, no blur if unset",
				},
				&cli.IntFlag{
					Name:    "workers",
					EnvVars: []string{"TGA_WORKERS"},
					Value:   4,
					Usage:   "number of concurrent workers",
				},
				&cli.StringFlag{
					Name:    "catalog",
					EnvVars: []string{"TGA_CATALOG"},
					Usage:   "record written images in this database",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				opts := []pipeline.Option{
					pipeline.WithWorkers(c.Int("workers")),
					pipeline.WithLogger(newLogger(c)),
					pipeline.WithContainerOptions(containerOptions(c)...),
				}

				if c.IsSet("type") {
					t, err := tga.ParseImageType(c.String("type"))
					if err != nil {
						return cli.NewExitError(err, 1)
					}
					opts = append(opts, pipeline.WithImageType(t))
				}

				if file := c.String("catalog"); file != "" {
					db, err := catalog.Open(file)
					if err != nil {
						return cli.NewExitError(err, 1)
					}
					defer db.Close()
					opts = append(opts, pipeline.WithRecorder(db))
				}

				var fn pipeline.Func
				if c.IsSet("amount") {
					blur := filter.Blur(c.Float64("amount"))
					fn = func(img *tga.Container) error {
						return img.ReplacePixels(blur(img.Pixels(), img.Width(), img.Height()))
					}
				}

				if err := pipeline.New(opts...).Run(context.Background(), c.Args().Get(0), c.Args().Get(1), fn); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
