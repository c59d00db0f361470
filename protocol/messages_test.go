package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Banegasn/canvas/domain"
)

func TestDecodePixelUpdate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    PixelUpdate
		wantErr bool
	}{
		{
			name:  "full update",
			input: `{"x":5,"y":5,"color":"#ff0000ff"}`,
			want:  PixelUpdate{X: 5, Y: 5, Color: "#ff0000ff"},
		},
		{
			name:  "extra fields ignored",
			input: `{"x":1,"y":2,"color":"#000000","who":"me"}`,
			want:  PixelUpdate{X: 1, Y: 2, Color: "#000000"},
		},
		{
			name:  "exact key alongside differently cased one",
			input: `{"X":9,"x":1,"y":2,"color":"#000000"}`,
			want:  PixelUpdate{X: 1, Y: 2, Color: "#000000"},
		},
		{
			name:  "negative coordinates decode",
			input: `{"x":-3,"y":0,"color":"#000000"}`,
			want:  PixelUpdate{X: -3, Y: 0, Color: "#000000"},
		},
		{name: "not json", input: "not json", wantErr: true},
		{name: "empty object", input: `{}`, wantErr: true},
		{name: "missing color", input: `{"x":1,"y":2}`, wantErr: true},
		{name: "missing y", input: `{"x":1,"color":"#000000"}`, wantErr: true},
		{name: "fractional x", input: `{"x":1.5,"y":2,"color":"#000000"}`, wantErr: true},
		{name: "string x", input: `{"x":"1","y":2,"color":"#000000"}`, wantErr: true},
		{name: "numeric color", input: `{"x":1,"y":2,"color":255}`, wantErr: true},
		{name: "array", input: `[1,2,"#000000"]`, wantErr: true},
		{name: "upper case keys", input: `{"X":1,"Y":1,"COLOR":"#ffffff"}`, wantErr: true},
		{name: "mixed case key", input: `{"x":1,"y":1,"Color":"#ffffff"}`, wantErr: true},
		{name: "null coordinate", input: `{"x":null,"y":1,"color":"#ffffff"}`, wantErr: true},
		{name: "null payload", input: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePixelUpdate([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedUpdate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeState(t *testing.T) {
	raster := make([]byte, 3*2*4)
	raster[0] = 255
	raster[len(raster)-1] = 7

	data, err := EncodeState(
		domain.Stats{Online: 2, Pixels: 9},
		domain.Settings{Width: 3, Height: 2},
		raster,
	)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "STATE", raw["type"])
	assert.Equal(t, map[string]any{"online": float64(2), "pixels": float64(9)}, raw["stats"])
	assert.Equal(t, map[string]any{"width": float64(3), "height": float64(2)}, raw["settings"])
	assert.Equal(t, "255,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,7", raw["state"])

	msg, err := DecodeState(data)
	require.NoError(t, err)
	assert.Len(t, msg.State, 3*2*4)
	assert.Equal(t, ByteList(raster), msg.State)
}

func TestDecodeState_WrongType(t *testing.T) {
	_, err := DecodeState([]byte(`{"stats":{"online":1,"pixels":0}}`))
	assert.Error(t, err)
}

func TestEncodeStats(t *testing.T) {
	data, err := EncodeStats(domain.Stats{Online: 3, Pixels: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stats":{"online":3,"pixels":1}}`, string(data))
}

func TestByteList_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteList
		wantErr bool
	}{
		{name: "empty", input: `""`, want: ByteList{}},
		{name: "single", input: `"42"`, want: ByteList{42}},
		{name: "many", input: `"0,1,255"`, want: ByteList{0, 1, 255}},
		{name: "overflow", input: `"256"`, wantErr: true},
		{name: "garbage", input: `"1,,2"`, wantErr: true},
		{name: "not a string", input: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ByteList
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
