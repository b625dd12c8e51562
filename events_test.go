package pixsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUIStateEvents(t *testing.T) {
	var ev UIStateEvents

	// publishing with no subscribers is a silent no-op
	ev.Publish(UIState{"CURRENT_VISUAL 0"})

	var got1, got2 []UIState
	cancel1 := ev.Subscribe(func(s UIState) { got1 = append(got1, s) })
	cancel2 := ev.Subscribe(func(s UIState) { got2 = append(got2, s) })

	ev.Publish(UIState{"CURRENT_VISUAL 1"})
	require.Len(t, got1, 1)
	require.Len(t, got2, 1)
	require.Equal(t, UIState{"CURRENT_VISUAL 1"}, got1[0])

	cancel1()
	ev.Publish(UIState{"CURRENT_VISUAL 2"})
	require.Len(t, got1, 1, "cancelled listener must not fire")
	require.Len(t, got2, 2)

	// cancelling twice is harmless
	cancel1()
	cancel2()
	ev.Publish(UIState{"CURRENT_VISUAL 3"})
	require.Len(t, got2, 2)
}
