package canvas

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c, err := New(1024, 200)
	require.NoError(t, err)
	assert.Equal(t, 1024, c.Width())
	assert.Equal(t, 200, c.Height())
	assert.Len(t, c.Snapshot(), 1024*200*4)
	assert.Equal(t, make([]byte, 1024*200*4), c.Snapshot())

	for _, size := range [][2]int{{0, 10}, {10, 0}, {-1, 5}, {math.MaxInt / 2, math.MaxInt / 2}} {
		_, err := New(size[0], size[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "size %v", size)
	}
}

func TestCanvas_ApplyPixel(t *testing.T) {
	c, err := New(16, 8)
	require.NoError(t, err)

	before := c.Snapshot()
	require.NoError(t, c.ApplyPixel(5, 3, "#11223344"))
	after := c.Snapshot()

	off := (5 + 3*16) * 4
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, after[off:off+4])

	after[off], after[off+1], after[off+2], after[off+3] = 0, 0, 0, 0
	assert.Equal(t, before, after, "only the target pixel may change")

	col, err := c.Pixel(5, 3)
	require.NoError(t, err)
	assert.Equal(t, Color{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, col)
}

func TestCanvas_ApplyPixelLastWriteWins(t *testing.T) {
	c, err := New(4, 4)
	require.NoError(t, err)

	require.NoError(t, c.ApplyPixel(1, 1, "#ff0000"))
	require.NoError(t, c.ApplyPixel(1, 1, "#0000ff80"))

	col, err := c.Pixel(1, 1)
	require.NoError(t, err)
	assert.Equal(t, Color{B: 255, A: 128}, col)
}

func TestCanvas_ApplyPixelRejected(t *testing.T) {
	tests := []struct {
		name    string
		x, y    int
		color   string
		wantErr error
	}{
		{name: "x past row end", x: 16, y: 0, color: "#ffffffff", wantErr: ErrOutOfBounds},
		{name: "x far past width", x: 2000, y: 5, color: "#00ff00", wantErr: ErrOutOfBounds},
		{name: "negative x", x: -1, y: 1, color: "#ffffffff", wantErr: ErrOutOfBounds},
		{name: "negative y", x: 1, y: -1, color: "#ffffffff", wantErr: ErrOutOfBounds},
		{name: "y past height", x: 0, y: 8, color: "#ffffffff", wantErr: ErrOutOfBounds},
		{name: "malformed color", x: 1, y: 1, color: "red", wantErr: ErrInvalidColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(16, 8)
			require.NoError(t, err)
			require.NoError(t, c.ApplyPixel(0, 1, "#01020304"))
			before := c.Snapshot()

			err = c.ApplyPixel(tt.x, tt.y, tt.color)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, c.Snapshot())
		})
	}
}

func TestCanvas_SnapshotIsCopy(t *testing.T) {
	c, err := New(2, 2)
	require.NoError(t, err)

	snap := c.Snapshot()
	snap[0] = 0xff

	col, err := c.Pixel(0, 0)
	require.NoError(t, err)
	assert.Equal(t, Color{}, col)
}

func TestCanvas_ConcurrentWrites(t *testing.T) {
	c, err := New(64, 64)
	require.NoError(t, err)

	colors := []Color{
		{R: 1, G: 1, B: 1, A: 1},
		{R: 2, G: 2, B: 2, A: 2},
	}

	var wg sync.WaitGroup
	for _, col := range colors {
		wg.Add(1)
		go func(col Color) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = c.Set(i%64, 0, col)
			}
		}(col)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			snap := c.Snapshot()
			for p := 0; p < 64*4; p += 4 {
				px := snap[p : p+4]
				assert.True(t, px[0] == px[1] && px[1] == px[2] && px[2] == px[3], "torn pixel %v", px)
			}
		}
	}()

	wg.Wait()
	<-done
}
