/*
Package pipeline applies a transformation to every TGA image below a
directory, spreading the work over a number of concurrent workers.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/tga"
)

const defaultWorkers = 4

// Func modifies a loaded image before it is saved
type Func func(*tga.Container) error

// Recorder is notified of every image the pipeline writes
type Recorder interface {
	Record(path string, c *tga.Container) error
}

// Pipeline holds the configuration for processing a tree of images
type Pipeline struct {
	workers   int
	logger    *log.Logger
	imageType *tga.ImageType
	recorder  Recorder
	opts      []tga.Option
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers sets the number of concurrent workers
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithImageType saves every image as t rather than its original type
func WithImageType(t tga.ImageType) Option {
	return func(p *Pipeline) {
		p.imageType = &t
	}
}

// WithRecorder passes every written image to r
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithContainerOptions passes opts to every image that is loaded
func WithContainerOptions(opts ...tga.Option) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opts...)
	}
}

// New returns a Pipeline
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		workers: defaultWorkers,
		logger:  log.New(ioutil.Discard, "", 0),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func isImage(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".tga")
}

func findFiles(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories
			if file != base && info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || !isImage(file) {
				return nil
			}

			rel, err := filepath.Rel(base, file)
			if err != nil {
				return err
			}

			select {
			case out <- rel:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (p *Pipeline) process(src, dst string, fn Func) error {
	c, err := tga.Load(src, p.opts...)
	if err != nil {
		if errors.Is(err, tga.ErrUnsupported) {
			p.logger.Printf("Skipping \"%s\": %v\n", src, err)
			return nil
		}
		return fmt.Errorf("%s: %w", src, err)
	}

	if fn != nil {
		if err := fn(c); err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
	}

	t := c.Header().ImageType
	if p.imageType != nil {
		t = *p.imageType
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if err := c.Save(dst, t); err != nil {
		return fmt.Errorf("%s: %w", dst, err)
	}
	p.logger.Printf("Wrote \"%s\" as %s\n", dst, t)

	if p.recorder != nil {
		if err := p.recorder.Record(dst, c); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) fileWorker(ctx context.Context, in <-chan string, src, dst string, fn Func) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for rel := range in {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := p.process(filepath.Join(src, rel), filepath.Join(dst, rel), fn); err != nil {
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

// waitForPipeline returns the first error, cancelling the remaining stages,
// once every stage has finished
func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	var first error
	for err := range mergeErrors(errs...) {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Run loads every image below src, applies fn and saves the result to the
// same relative path below dst. Hidden files and directories are skipped, as
// are images in a format that cannot be decoded.
func (p *Pipeline) Run(ctx context.Context, src, dst string, fn Func) error {
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	dst, err = filepath.Abs(dst)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := findFiles(ctx, src)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < p.workers; i++ {
		errc, err := p.fileWorker(ctx, files, src, dst, fn)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	if err := waitForPipeline(cancelFunc, errcList...); err != nil {
		return err
	}

	return ctx.Err()
}
