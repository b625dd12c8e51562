package pixsync

import (
	"log/slog"
	"testing"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"
)

func testMirror(t *testing.T) *Mirror {
	t.Helper()
	return newMirror(slog.Default(), &metrics.BlackholeSink{}, nil)
}

func mustCommand(t *testing.T, symbol string) Command {
	t.Helper()
	cmd, err := ResolveCommand(symbol)
	require.NoError(t, err)
	return cmd
}

func TestMirrorApplyIdempotent(t *testing.T) {
	m := testMirror(t)
	blob, err := MarshalState("2.1.0")
	require.NoError(t, err)

	cmd := mustCommand(t, CmdGetVersion)
	require.NoError(t, m.Apply(cmd, blob))
	require.True(t, m.Received(KindVersion))
	require.Equal(t, "2.1.0", m.Version())
	progress := m.SetupProgress()

	// duplicate delivery overwrites the same slot and changes nothing
	require.NoError(t, m.Apply(cmd, blob))
	require.Equal(t, "2.1.0", m.Version())
	require.Equal(t, progress, m.SetupProgress())
}

func TestMirrorApplyUnsolicited(t *testing.T) {
	// a reply nobody asked for still populates its slot, so late replies
	// from an aborted session are not wasted
	m := testMirror(t)
	blob, err := MarshalState(MatrixLayout{Width: 16, Height: 16})
	require.NoError(t, err)
	require.NoError(t, m.Apply(mustCommand(t, CmdGetMatrixData), blob))
	require.Equal(t, MatrixLayout{Width: 16, Height: 16}, m.MatrixLayout())
}

func TestMirrorApplyBadBlobLeavesSlotUnset(t *testing.T) {
	m := testMirror(t)
	err := m.Apply(mustCommand(t, CmdGetConfiguration), []byte{0xff, 0xfe})
	require.ErrorIs(t, err, ErrDeserialize)
	require.False(t, m.Received(KindConfig))
	require.False(t, m.Initialized())
}

func TestMirrorApplyNonStateCommand(t *testing.T) {
	m := testMirror(t)
	err := m.Apply(mustCommand(t, CmdRegisterObserver), nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestMirrorInitializedAndProgress(t *testing.T) {
	m := testMirror(t)
	require.False(t, m.Initialized())
	require.Zero(t, m.SetupProgress())

	objects := map[string]any{
		CmdGetVersion:        "2.1.0",
		CmdGetConfiguration:  Config{Screens: 1},
		CmdGetMatrixData:     MatrixLayout{Width: 8, Height: 8},
		CmdGetColorSets:      []ColorSet{{Name: "Mono"}},
		CmdGetOutput:         OutputSnapshot{Name: "null"},
		CmdGetGuiState:       UIState{"CURRENT_VISUAL 0"},
		CmdGetOutputMapping:  []OutputMapping{{}},
		CmdGetPresetSettings: PresetSettings{},
		CmdGetStatistics:     Statistics{PacketsReceived: 1},
		CmdGetFileLocation:   FileLocation{DataDir: "data"},
		CmdGetImageBuffer:    ImageBuffer{},
	}

	applied := 0
	for _, symbol := range BootstrapCommands() {
		blob, err := MarshalState(objects[symbol])
		require.NoError(t, err)
		require.NoError(t, m.Apply(mustCommand(t, symbol), blob))
		applied++
		require.InDelta(t, float64(applied)/setupSteps, m.SetupProgress(), 1e-9)
	}

	require.True(t, m.Initialized())
	m.markLive()
	require.Equal(t, 1.0, m.SetupProgress())
}

func TestMirrorUIStateNotifiesSubscribers(t *testing.T) {
	m := testMirror(t)

	var got []UIState
	cancel := m.SubscribeUIState(func(s UIState) { got = append(got, s) })
	defer cancel()

	blob, err := MarshalState(UIState{"CURRENT_VISUAL 2"})
	require.NoError(t, err)
	require.NoError(t, m.Apply(mustCommand(t, CmdGetGuiState), blob))

	require.Len(t, got, 1)
	require.Equal(t, UIState{"CURRENT_VISUAL 2"}, got[0])
	require.Equal(t, UIState{"CURRENT_VISUAL 2"}, m.UIState())
}
