package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: Default(),
		},
		{
			name: "overrides",
			env: map[string]string{
				"PORT":          "9000",
				"CANVAS_WIDTH":  "64",
				"CANVAS_HEIGHT": "32",
				"ASSET_ROOT":    "/srv/www",
				"LOG_LEVEL":     "debug",
			},
			want: Config{Port: "9000", Width: 64, Height: 32, AssetRoot: "/srv/www", LogLevel: "debug"},
		},
		{
			name:    "non numeric width",
			env:     map[string]string{"CANVAS_WIDTH": "wide"},
			wantErr: true,
		},
		{
			name:    "zero height",
			env:     map[string]string{"CANVAS_HEIGHT": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PORT", "CANVAS_WIDTH", "CANVAS_HEIGHT", "ASSET_ROOT", "LOG_LEVEL"} {
				t.Setenv(key, tt.env[key])
			}

			got, err := Load()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
