package clock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetDurations(t *testing.T) {
	p := Preset{Name: "10 min | 5 sec", Minutes: 10, IncrementSeconds: 5}

	assert.Equal(t, 10*time.Minute, p.Initial())
	assert.Equal(t, 5*time.Second, p.Increment())
	assert.NoError(t, p.Validate())
	assert.NoError(t, Preset{}.Validate())
}

func TestPresetString(t *testing.T) {
	assert.Equal(t, "Armageddon", Preset{Name: "Armageddon", Minutes: 5}.String())
	assert.Equal(t, "3 min", Preset{Minutes: 3}.String())
	assert.Equal(t, "3 min | 2 sec", Preset{Minutes: 3, IncrementSeconds: 2}.String())
}

func TestDefaultPresets(t *testing.T) {
	presets := DefaultPresets()
	require.Len(t, presets, 13)

	p, ok := FindPreset(presets, DefaultPresetName)
	require.True(t, ok)
	assert.Equal(t, 15, p.Minutes)
	assert.Equal(t, 5, p.IncrementSeconds)

	p, ok = FindPreset(presets, "  60 MIN | 30 sec ")
	require.True(t, ok)
	assert.Equal(t, 60, p.Minutes)

	_, ok = FindPreset(presets, "7 min")
	assert.False(t, ok)
}

func TestParsePresets(t *testing.T) {
	data := []byte(`
presets:
  - name: Bullet
    minutes: 1
  - minutes: 3
    increment_seconds: 2
`)
	presets, err := ParsePresets(data)
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, Preset{Name: "Bullet", Minutes: 1}, presets[0])
	assert.Equal(t, Preset{Name: "3 min | 2 sec", Minutes: 3, IncrementSeconds: 2}, presets[1])
}

func TestParsePresetsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed", data: "presets: ["},
		{name: "empty", data: "presets: []"},
		{name: "negative", data: "presets:\n  - name: bad\n    minutes: -1\n"},
		{name: "duplicate", data: "presets:\n  - name: a\n    minutes: 1\n  - name: A\n    minutes: 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadPresets(t *testing.T) {
	presets, err := LoadPresets("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPresets(), presets)

	presets, err = LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPresets(), presets)

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: Rapid\n    minutes: 25\n    increment_seconds: 10\n"), 0o600))

	presets, err = LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, []Preset{{Name: "Rapid", Minutes: 25, IncrementSeconds: 10}}, presets)
}

func TestFormatClockTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 15 * time.Minute, want: "15:00"},
		{in: 90 * time.Second, want: "1:30"},
		{in: 10 * time.Second, want: "0:10"},
		{in: 9*time.Second + 400*time.Millisecond, want: "9.4"},
		{in: 0, want: "0.0"},
		{in: -time.Second, want: "0.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClockTime(tt.in), tt.in.String())
	}
}

func TestPlayer(t *testing.T) {
	assert.Equal(t, Player2, Player1.Opp())
	assert.Equal(t, Player1, Player2.Opp())
	assert.Equal(t, NoPlayer, NoPlayer.Opp())
	assert.False(t, NoPlayer.Valid())
	assert.Equal(t, "player2", Player2.String())
	assert.Equal(t, "none", Player(7).String())
}

func TestManualTicks(t *testing.T) {
	ticks := NewManualTicks()

	var a, b int
	ta := ticks.Start(time.Second, func() { a++ })
	ticks.Start(time.Second, func() { b++ })
	assert.Equal(t, 2, ticks.Active())

	ticks.Advance(2)
	ta.Stop()
	ta.Stop()
	ticks.Fire()

	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)
	assert.Equal(t, 1, ticks.Active())
}
