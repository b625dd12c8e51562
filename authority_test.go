package pixsync

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"
)

// fakeSource is a stand-in for the visual pipeline's state holders.
type fakeSource struct{}

func (fakeSource) Version() string { return "2.1.0" }
func (fakeSource) Config() Config {
	return Config{Screens: 2, AdditionalVisuals: 1, TargetFPS: 50, OutputDevice: "artnet"}
}
func (fakeSource) MatrixLayout() MatrixLayout { return MatrixLayout{Width: 64, Height: 32} }
func (fakeSource) ColorSets() []ColorSet {
	return []ColorSet{{Name: "Fire", Colors: []uint32{0xff0000}}}
}
func (fakeSource) OutputSnapshot() OutputSnapshot {
	return OutputSnapshot{Name: "artnet", Type: "ARTNET", Connected: true}
}
func (fakeSource) UIState() UIState { return UIState{"CURRENT_VISUAL 0"} }
func (fakeSource) OutputMappings() []OutputMapping {
	return []OutputMapping{{Output: 0, Visual: 0, Fader: 0}}
}
func (fakeSource) PresetSettings() PresetSettings {
	return PresetSettings{Selected: 1, Names: []string{"a", "b"}}
}
func (fakeSource) FileLocation() FileLocation { return FileLocation{DataDir: "data"} }
func (fakeSource) ImageBuffer() ImageBuffer {
	return ImageBuffer{Visuals: [][]uint32{{1, 2}}, Outputs: [][]uint32{{3, 4}}}
}

type sinkRecorder struct {
	lk   sync.Mutex
	cmds []Command
	args [][]string
}

func (r *sinkRecorder) HandleCommand(cmd Command, args []string, blob []byte) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.cmds = append(r.cmds, cmd)
	r.args = append(r.args, args)
}

func (r *sinkRecorder) count() int {
	r.lk.Lock()
	defer r.lk.Unlock()
	return len(r.cmds)
}

func newTestAuthority(t *testing.T, events *UIStateEvents, sink CommandSink) *Authority {
	t.Helper()
	authority, err := NewAuthority(&AuthorityConfig{
		BindAddr:   "127.0.0.1",
		BindPort:   EphemeralPort,
		Source:     fakeSource{},
		Sink:       sink,
		Events:     events,
		MetricSink: &metrics.BlackholeSink{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { authority.Close() })
	return authority
}

func TestAuthorityRepliesToStateRequest(t *testing.T) {
	authority := newTestAuthority(t, nil, nil)

	rec := newMsgRecorder()
	mirror := newTestEndpoint(t, rec.handle)
	client, err := NewClient(mirror, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	require.NoError(t, client.Send(Message{Pattern: CmdGetConfiguration}))

	reply := rec.wait(t, 2*time.Second)
	require.Equal(t, CmdGetConfiguration, reply.Pattern, "reply is tagged with the request pattern")
	require.True(t, reply.HasBlob())

	var cfg Config
	require.NoError(t, UnmarshalState(reply.Blob, &cfg))
	require.Equal(t, fakeSource{}.Config(), cfg)

	// exactly one reply per request
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestAuthorityRepliesForAllBootstrapKinds(t *testing.T) {
	authority := newTestAuthority(t, nil, nil)

	rec := newMsgRecorder()
	mirror := newTestEndpoint(t, rec.handle)
	client, err := NewClient(mirror, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	for _, symbol := range BootstrapCommands() {
		require.NoError(t, client.Send(Message{Pattern: symbol}))
		reply := rec.wait(t, 2*time.Second)
		require.Equal(t, symbol, reply.Pattern)
		require.True(t, reply.HasBlob(), symbol)
	}
}

func TestAuthoritySurvivesBadTraffic(t *testing.T) {
	authority := newTestAuthority(t, nil, nil)

	rec := newMsgRecorder()
	mirror := newTestEndpoint(t, rec.handle)
	client, err := NewClient(mirror, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	raw, err := net.DialUDP("udp", nil, authority.Addr())
	require.NoError(t, err)
	defer raw.Close()

	// malformed frame, unknown command, argument mismatch
	_, err = raw.Write([]byte{0xff, 0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, client.Send(Message{Pattern: "NOT_A_COMMAND"}))
	require.NoError(t, client.Send(Message{Pattern: CmdChangeMixer}))

	// the loop keeps serving afterwards
	require.NoError(t, client.Send(Message{Pattern: CmdGetVersion}))
	reply := rec.wait(t, 2*time.Second)
	require.Equal(t, CmdGetVersion, reply.Pattern)

	// but all of it counted towards traffic statistics
	require.Eventually(t, func() bool {
		return authority.Statistics().PacketsReceived == 4
	}, 2*time.Second, 10*time.Millisecond)
	require.NotZero(t, authority.Statistics().BytesReceived)
}

func TestAuthorityForwardsOperationalCommands(t *testing.T) {
	sink := &sinkRecorder{}
	authority := newTestAuthority(t, nil, sink)

	sender := newTestEndpoint(t, nil)
	client, err := NewClient(sender, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	require.NoError(t, client.Send(Message{Pattern: CmdChangeMixer, Args: []string{"3"}}))
	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	sink.lk.Lock()
	require.Equal(t, CmdChangeMixer, sink.cmds[0].Symbol)
	require.Equal(t, []string{"3"}, sink.args[0])
	sink.lk.Unlock()

	// argument mismatch never reaches the sink
	require.NoError(t, client.Send(Message{Pattern: CmdChangeMixer, Args: []string{"3", "4"}}))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, sink.count())
}

func TestAuthorityObserverLifecycle(t *testing.T) {
	events := &UIStateEvents{}
	authority := newTestAuthority(t, events, nil)

	recA := newMsgRecorder()
	mirrorA := newTestEndpoint(t, recA.handle)
	clientA, err := NewClient(mirrorA, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	recB := newMsgRecorder()
	mirrorB := newTestEndpoint(t, recB.handle)
	clientB, err := NewClient(mirrorB, "127.0.0.1", authority.Addr().Port)
	require.NoError(t, err)

	// no observer registered: a state change produces zero messages
	events.Publish(UIState{"CURRENT_VISUAL 1"})
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, recA.count())
	require.Zero(t, recB.count())

	// observer A gets pushes
	require.NoError(t, clientA.Send(Message{Pattern: CmdRegisterObserver}))
	require.Eventually(t, func() bool { return authority.Observer() != nil }, 2*time.Second, 10*time.Millisecond)

	events.Publish(UIState{"CURRENT_VISUAL 2"})
	push := recA.wait(t, 2*time.Second)
	require.Equal(t, CmdGetGuiState, push.Pattern)
	var state UIState
	require.NoError(t, UnmarshalState(push.Blob, &state))
	require.Equal(t, UIState{"CURRENT_VISUAL 2"}, state)
	require.Zero(t, recB.count())

	// a different client replaces, never merges with, the observer
	require.NoError(t, clientB.Send(Message{Pattern: CmdRegisterObserver}))
	require.Eventually(t, func() bool {
		observer := authority.Observer()
		return observer != nil && observer.Port == mirrorB.LocalAddr().Port
	}, 2*time.Second, 10*time.Millisecond)

	events.Publish(UIState{"CURRENT_VISUAL 3"})
	push = recB.wait(t, 2*time.Second)
	require.Equal(t, CmdGetGuiState, push.Pattern)
	require.Equal(t, 1, recA.count(), "pushes go only to the new observer")

	// unregister silences the bridge again
	require.NoError(t, clientB.Send(Message{Pattern: CmdUnregisterObserver}))
	require.Eventually(t, func() bool { return authority.Observer() == nil }, 2*time.Second, 10*time.Millisecond)

	events.Publish(UIState{"CURRENT_VISUAL 4"})
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, recA.count())
	require.Equal(t, 1, recB.count())
}
