package pixsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip[T any](t *testing.T, in T) T {
	t.Helper()
	blob, err := MarshalState(in)
	require.NoError(t, err)
	require.LessOrEqual(t, len(blob), MaxPayloadSize)

	var out T
	require.NoError(t, UnmarshalState(blob, &out))
	return out
}

func TestStateRoundTrip(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		require.Equal(t, "2.1.0", roundTrip(t, "2.1.0"))
		require.Equal(t, "", roundTrip(t, ""))
	})

	t.Run("config", func(t *testing.T) {
		in := Config{Screens: 2, AdditionalVisuals: 1, TargetFPS: 50, OutputDevice: "artnet", GammaCorrection: true}
		require.Equal(t, in, roundTrip(t, in))
		require.Equal(t, Config{}, roundTrip(t, Config{}))
		require.Equal(t, 4, in.Visuals())
	})

	t.Run("matrix layout", func(t *testing.T) {
		in := MatrixLayout{Width: 64, Height: 32}
		require.Equal(t, in, roundTrip(t, in))
		require.Equal(t, MatrixLayout{}, roundTrip(t, MatrixLayout{}))
	})

	t.Run("color sets", func(t *testing.T) {
		in := []ColorSet{
			{Name: "Fire", Colors: []uint32{0xff0000, 0xff8800}},
			{Name: "Mono", Colors: []uint32{0xffffff}},
		}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("output snapshot", func(t *testing.T) {
		in := OutputSnapshot{Name: "rainbowduino", Type: "I2C", Connected: true, Error: "ack timeout"}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("ui state", func(t *testing.T) {
		in := UIState{"CURRENT_VISUAL 1", "CHANGE_BRIGHTNESS 80"}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("output mapping", func(t *testing.T) {
		in := []OutputMapping{{Output: 0, Visual: 1, Fader: 2}, {Output: 1, Visual: 0, Fader: 0}}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("preset settings", func(t *testing.T) {
		in := PresetSettings{Selected: 3, Names: []string{"a", "b", "c", "d"}}
		require.Equal(t, in, roundTrip(t, in))
		require.Equal(t, PresetSettings{}, roundTrip(t, PresetSettings{}))
	})

	t.Run("statistics", func(t *testing.T) {
		in := Statistics{PacketsReceived: 42, BytesReceived: 4096, FrameCount: 100000, CurrentFPS: 49.7, StartTime: 1700000000}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("file location", func(t *testing.T) {
		in := FileLocation{DataDir: "data", ImageDir: "data/image", PresetsFile: "data/presets.led", ConfigFile: "data/config.properties"}
		require.Equal(t, in, roundTrip(t, in))
	})

	t.Run("image buffer", func(t *testing.T) {
		in := ImageBuffer{
			Visuals: [][]uint32{{1, 2, 3}, {4, 5, 6}},
			Outputs: [][]uint32{{7, 8, 9}},
		}
		require.Equal(t, in, roundTrip(t, in))
		require.Equal(t, ImageBuffer{}, roundTrip(t, ImageBuffer{}))
	})
}

func TestMarshalStateRejectsOversize(t *testing.T) {
	// a frame buffer that cannot fit one datagram is a deployment error,
	// not something to fragment silently
	huge := ImageBuffer{Visuals: [][]uint32{make([]uint32, 64*1024)}}
	_, err := MarshalState(huge)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestUnmarshalStateKindMismatch(t *testing.T) {
	blob, err := MarshalState(UIState{"CURRENT_VISUAL 1"})
	require.NoError(t, err)

	var cfg Config
	require.ErrorIs(t, UnmarshalState(blob, &cfg), ErrDeserialize)
}
