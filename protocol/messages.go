package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Banegasn/canvas/domain"
)

const TypeState = "STATE"

var ErrMalformedUpdate = errors.New("malformed pixel update")

// PixelUpdate is the client-to-server paint request. Coordinates are grid
// cells, not screen pixels.
type PixelUpdate struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Color string `json:"color"`
}

// DecodePixelUpdate requires "x", "y" and "color" spelled exactly so; the
// payload is relayed as received and clients read those keys.
func DecodePixelUpdate(data []byte) (PixelUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return PixelUpdate{}, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}

	var u PixelUpdate
	if err := decodeField(fields, "x", &u.X); err != nil {
		return PixelUpdate{}, err
	}
	if err := decodeField(fields, "y", &u.Y); err != nil {
		return PixelUpdate{}, err
	}
	if err := decodeField(fields, "color", &u.Color); err != nil {
		return PixelUpdate{}, err
	}
	return u, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing %s", ErrMalformedUpdate, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedUpdate, name, err)
	}
	return nil
}

type StateMessage struct {
	Type     string          `json:"type"`
	Stats    domain.Stats    `json:"stats"`
	Settings domain.Settings `json:"settings"`
	State    ByteList        `json:"state"`
}

type StatsMessage struct {
	Stats domain.Stats `json:"stats"`
}

// EncodeState builds the full-state message a new connection receives
// before anything else.
func EncodeState(stats domain.Stats, settings domain.Settings, raster []byte) ([]byte, error) {
	return json.Marshal(StateMessage{
		Type:     TypeState,
		Stats:    stats,
		Settings: settings,
		State:    raster,
	})
}

func DecodeState(data []byte) (StateMessage, error) {
	var msg StateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return StateMessage{}, err
	}
	if msg.Type != TypeState {
		return StateMessage{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return msg, nil
}

func EncodeStats(stats domain.Stats) ([]byte, error) {
	return json.Marshal(StatsMessage{Stats: stats})
}

// ByteList encodes as a JSON string of comma separated decimal bytes,
// e.g. "0,0,255,255".
type ByteList []byte

func (b ByteList) MarshalJSON() ([]byte, error) {
	// worst case "255," per byte plus quotes
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '"')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, '"')
	return out, nil
}

func (b *ByteList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*b = ByteList{}
		return nil
	}

	parts := bytes.Split([]byte(s), []byte{','})
	out := make(ByteList, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(string(p), 10, 8)
		if err != nil {
			return fmt.Errorf("byte %d: %w", i, err)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
