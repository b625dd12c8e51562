package pixsync

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
)

// StateSource exposes read access to the authority's live state holders.
// The visual pipeline owns the data; the authority only snapshots it when a
// mirror asks.
type StateSource interface {
	Version() string
	Config() Config
	MatrixLayout() MatrixLayout
	ColorSets() []ColorSet
	OutputSnapshot() OutputSnapshot
	UIState() UIState
	OutputMappings() []OutputMapping
	PresetSettings() PresetSettings
	FileLocation() FileLocation
	ImageBuffer() ImageBuffer
}

// CommandSink receives validated operational (visual-control) commands.
type CommandSink interface {
	HandleCommand(cmd Command, args []string, blob []byte)
}

// PipelineStats reports frame production counters owned by the visual
// pipeline, merged into the statistics snapshot served over the wire.
type PipelineStats func() (frameCount uint64, currentFPS float32)

// AuthorityConfig configures the authority endpoint.
type AuthorityConfig struct {
	// BindAddr and BindPort are where the authority listens. Zero means
	// DefaultAuthorityPort; EphemeralPort lets the kernel pick.
	BindAddr string
	BindPort int

	// Source provides the mirrored state. Required.
	Source StateSource

	// Sink receives operational commands. Optional; without one they are
	// logged and dropped.
	Sink CommandSink

	// Events is the UI-state change feed the live-update bridge
	// subscribes to. Optional.
	Events *UIStateEvents

	// Pipeline supplies frame counters for the statistics snapshot.
	// Optional.
	Pipeline PipelineStats

	// Announce advertises the service over mDNS.
	Announce bool

	// AnnounceInstance names the mDNS service instance.
	AnnounceInstance string

	// MetricLabels to add to every metric emitted by the authority.
	MetricLabels []metrics.Label

	// MetricSink to use for emitting metrics.
	MetricSink metrics.MetricSink

	// LogHandler to use for emitting structured logs.
	LogHandler slog.Handler
}

// Authority holds the canonical visual/output state and serves the state
// synchronization protocol: internal bootstrap requests are answered with
// serialized state objects, registration commands manage the single
// mirroring observer, and operational commands are forwarded to the sink.
type Authority struct {
	cfg    *AuthorityConfig
	logger *slog.Logger
	msink  metrics.MetricSink

	endpoint  *Endpoint
	announcer *Announcer
	started   time.Time

	// replies maps each internal request symbol to its state accessor.
	replies map[string]func() (any, error)

	// observerLk guards the registered observer and its cached return
	// channel. The receive goroutine and the live-update bridge (which
	// runs on the pipeline's goroutine) both touch them; peer
	// verification and channel re-establishment must be atomic with
	// respect to concurrent pushes.
	observerLk sync.Mutex
	observer   *net.UDPAddr
	replyTo    *Client

	unsubscribe func()
}

// NewAuthority binds the endpoint, installs the reply table and starts
// serving.
func NewAuthority(cfg *AuthorityConfig) (*Authority, error) {
	if cfg.Source == nil {
		return nil, ErrInvalidCfg
	}

	a := &Authority{
		cfg:     cfg,
		started: time.Now(),
	}

	if cfg.LogHandler == nil {
		a.logger = slog.Default()
	} else {
		a.logger = slog.New(cfg.LogHandler)
	}

	if cfg.MetricSink == nil {
		a.msink = metrics.Default()
	} else {
		a.msink = cfg.MetricSink
	}

	port := cfg.BindPort
	if port == 0 {
		port = DefaultAuthorityPort
	}

	src := cfg.Source
	a.replies = map[string]func() (any, error){
		CmdGetVersion:        func() (any, error) { return src.Version(), nil },
		CmdGetConfiguration:  func() (any, error) { return src.Config(), nil },
		CmdGetMatrixData:     func() (any, error) { return src.MatrixLayout(), nil },
		CmdGetColorSets:      func() (any, error) { return src.ColorSets(), nil },
		CmdGetOutput:         func() (any, error) { return src.OutputSnapshot(), nil },
		CmdGetGuiState:       func() (any, error) { return src.UIState(), nil },
		CmdGetOutputMapping:  func() (any, error) { return src.OutputMappings(), nil },
		CmdGetPresetSettings: func() (any, error) { return src.PresetSettings(), nil },
		CmdGetStatistics:     func() (any, error) { return a.statistics(), nil },
		CmdGetFileLocation:   func() (any, error) { return src.FileLocation(), nil },
		CmdGetImageBuffer:    func() (any, error) { return src.ImageBuffer(), nil },
	}

	endpoint, err := NewEndpoint(&EndpointConfig{
		BindAddr:     cfg.BindAddr,
		BindPort:     port,
		Handler:      a.handleMessage,
		MetricLabels: cfg.MetricLabels,
		MetricSink:   a.msink,
		LogHandler:   cfg.LogHandler,
	})
	if err != nil {
		return nil, err
	}
	a.endpoint = endpoint

	if cfg.Announce {
		announcer, err := Announce(cfg.AnnounceInstance, a.endpoint.LocalAddr().Port)
		if err != nil {
			a.logger.Warn("mDNS announcement failed, mirrors must use the default endpoint", "error", err)
		} else {
			a.announcer = announcer
		}
	}

	if cfg.Events != nil {
		a.unsubscribe = cfg.Events.Subscribe(a.pushUIState)
	}

	a.logger.Info("authority serving", "addr", a.endpoint.LocalAddr())
	return a, nil
}

// Addr returns the bound endpoint address.
func (a *Authority) Addr() *net.UDPAddr {
	return a.endpoint.LocalAddr()
}

// Statistics snapshots the authority's traffic and pipeline counters.
func (a *Authority) Statistics() Statistics {
	return a.statistics()
}

// Observer returns the currently registered mirroring client, nil when
// none is registered.
func (a *Authority) Observer() *net.UDPAddr {
	a.observerLk.Lock()
	defer a.observerLk.Unlock()
	return a.observer
}

// Close stops the bridge subscription, the advertisement and the endpoint.
func (a *Authority) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.announcer.Close(); err != nil {
		a.logger.Warn("failed to stop mDNS advertisement", "error", err)
	}
	return a.endpoint.Close()
}

func (a *Authority) statistics() Statistics {
	packets, bytes := a.endpoint.Counters()
	stats := Statistics{
		PacketsReceived: packets,
		BytesReceived:   bytes,
		StartTime:       a.started.Unix(),
	}
	if a.cfg.Pipeline != nil {
		stats.FrameCount, stats.CurrentFPS = a.cfg.Pipeline()
	}
	return stats
}

// handleMessage dispatches one inbound message. No failure here may
// propagate: the endpoint must keep serving other peers.
func (a *Authority) handleMessage(msg Message) {
	cmd, err := ResolveCommand(msg.Pattern)
	if err != nil {
		a.msink.IncrCounterWithLabels(MetricUnknownCmdCount, 1.0, a.cfg.MetricLabels)
		a.logger.Warn("unknown message", "pattern", msg.Pattern, "remote", msg.Source)
		return
	}

	if err := cmd.ValidateArgs(len(msg.Args), msg.HasBlob()); err != nil {
		a.msink.IncrCounterWithLabels(MetricArgMismatchCount, 1.0, a.cfg.MetricLabels)
		a.logger.Warn("dropping message", "error", err, "remote", msg.Source)
		return
	}

	if cmd.Group != GroupInternal {
		a.logger.Info("received operational command", "command", cmd.Symbol, "args", msg.Args)
		if a.cfg.Sink != nil {
			a.cfg.Sink.HandleCommand(cmd, msg.Args, msg.Blob)
		}
		return
	}

	a.logger.Debug("received internal command", "command", cmd.Symbol, "remote", msg.Source)
	switch cmd.Symbol {
	case CmdRegisterObserver:
		a.register(msg.Source)
	case CmdUnregisterObserver:
		a.unregister(msg.Source)
	default:
		a.reply(cmd, msg.Source)
	}
}

// reply produces the requested state object and sends it back tagged with
// the request's own pattern as the correlation key. Serialization or
// transport failures are logged and the request dropped.
func (a *Authority) reply(cmd Command, peer *net.UDPAddr) {
	produce, ok := a.replies[cmd.Symbol]
	if !ok {
		// registry and reply table disagree, a deployment mismatch
		a.logger.Error("no reply handler for internal command", "command", cmd.Symbol)
		return
	}

	object, err := produce()
	if err != nil {
		a.logger.Warn("state accessor failed", "command", cmd.Symbol, "error", err)
		return
	}

	blob, err := MarshalState(object)
	if err != nil {
		a.msink.IncrCounterWithLabels(MetricReplyErrorCount, 1.0, a.cfg.MetricLabels)
		a.logger.Warn("failed to serialize reply", "command", cmd.Symbol, "error", err)
		return
	}

	client := a.verifyReturnChannel(peer)
	if err := client.Send(Message{Pattern: cmd.Symbol, Blob: blob}); err != nil {
		a.msink.IncrCounterWithLabels(MetricReplyErrorCount, 1.0, a.cfg.MetricLabels)
		a.logger.Warn("failed to send reply", "command", cmd.Symbol, "remote", peer, "error", err)
		return
	}
	a.msink.IncrCounterWithLabels(MetricReplyCount, 1.0,
		append(a.cfg.MetricLabels, LabelCommand.M(cmd.Symbol)))
}

// verifyReturnChannel returns the cached per-peer return channel,
// re-establishing it whenever the sender's address differs from the
// last-known one.
func (a *Authority) verifyReturnChannel(peer *net.UDPAddr) *Client {
	a.observerLk.Lock()
	defer a.observerLk.Unlock()
	return a.returnChannelLocked(peer)
}

func (a *Authority) returnChannelLocked(peer *net.UDPAddr) *Client {
	if a.replyTo == nil || a.replyTo.Target().String() != peer.String() {
		a.replyTo = &Client{endpoint: a.endpoint, target: peer}
	}
	return a.replyTo
}

func (a *Authority) register(peer *net.UDPAddr) {
	a.observerLk.Lock()
	defer a.observerLk.Unlock()
	if a.observer != nil && a.observer.String() != peer.String() {
		a.msink.IncrCounterWithLabels(MetricObserverSwapCount, 1.0, a.cfg.MetricLabels)
		a.logger.Info("replacing registered observer", "old", a.observer, "new", peer)
	}
	a.observer = peer
	a.returnChannelLocked(peer)
	a.logger.Info("observer registered", "remote", peer)
}

func (a *Authority) unregister(peer *net.UDPAddr) {
	a.observerLk.Lock()
	defer a.observerLk.Unlock()
	if a.observer == nil {
		return
	}
	a.observer = nil
	a.logger.Info("observer unregistered", "remote", peer)
}

// pushUIState is the live-update bridge: on a UI-state change it sends the
// delta unsolicited to the registered observer. With no observer the
// change is a silent no-op, nothing is buffered or replayed later.
func (a *Authority) pushUIState(state UIState) {
	a.observerLk.Lock()
	observer := a.observer
	var client *Client
	if observer != nil {
		client = a.returnChannelLocked(observer)
	}
	a.observerLk.Unlock()

	if client == nil {
		return
	}

	blob, err := MarshalState(state)
	if err != nil {
		a.logger.Warn("failed to serialize ui state push", "error", err)
		return
	}
	if err := client.Send(Message{Pattern: CmdGetGuiState, Blob: blob}); err != nil {
		a.logger.Warn("failed to push ui state", "remote", observer, "error", err)
		return
	}
	a.msink.IncrCounterWithLabels(MetricObserverPushCount, 1.0, a.cfg.MetricLabels)
}
