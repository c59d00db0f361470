// Package canvas holds the authoritative RGBA raster shared by all clients.
package canvas

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Banegasn/canvas/domain"
)

const bytesPerPixel = 4

var (
	ErrOutOfBounds = errors.New("pixel out of bounds")
	ErrInvalidSize = errors.New("invalid canvas size")
)

// Canvas is a fixed-size raster of RGBA pixels laid out row by row.
// Every 4-byte pixel group is written and read under mu, so a snapshot
// never observes a half-written pixel.
type Canvas struct {
	width  int
	height int

	mu  sync.RWMutex
	buf []byte
}

func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > math.MaxInt/bytesPerPixel/height {
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrInvalidSize, width, height)
	}

	return &Canvas{
		width:  width,
		height: height,
		buf:    make([]byte, width*height*bytesPerPixel),
	}, nil
}

func (c *Canvas) Width() int  { return c.width }
func (c *Canvas) Height() int { return c.height }

func (c *Canvas) Settings() domain.Settings {
	return domain.Settings{Width: c.width, Height: c.height}
}

// ApplyPixel parses color and writes it at (x, y). On any error the
// raster is left untouched.
func (c *Canvas) ApplyPixel(x, y int, color string) error {
	col, err := ParseColor(color)
	if err != nil {
		return err
	}
	return c.Set(x, y, col)
}

func (c *Canvas) Set(x, y int, col Color) error {
	off, err := c.offset(x, y)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.buf[off] = col.R
	c.buf[off+1] = col.G
	c.buf[off+2] = col.B
	c.buf[off+3] = col.A
	c.mu.Unlock()
	return nil
}

func (c *Canvas) Pixel(x, y int) (Color, error) {
	off, err := c.offset(x, y)
	if err != nil {
		return Color{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Color{R: c.buf[off], G: c.buf[off+1], B: c.buf[off+2], A: c.buf[off+3]}, nil
}

// Snapshot returns a copy of the whole raster.
func (c *Canvas) Snapshot() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]byte, len(c.buf))
	copy(out, c.buf)
	return out
}

// offset must be checked against the bounds first: x past the row end
// would otherwise land inside the next row.
func (c *Canvas) offset(x, y int) (int, error) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return 0, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, c.width, c.height)
	}
	return (x + y*c.width) * bytesPerPixel, nil
}
