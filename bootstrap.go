package pixsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
)

// SessionState is one stage of the bootstrap coordinator.
type SessionState uint8

const (
	StateDiscovering SessionState = iota
	StateConnecting
	StateFetching
	StateRegistering
	StateLive
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateFetching:
		return "fetching"
	case StateRegistering:
		return "registering"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	defaultRetryInterval = 2 * time.Second
	defaultMaxRetries    = 5
)

// Session drives one bootstrap of a mirror against a remote authority:
// discover, connect, fetch every required state kind under a bounded retry
// loop, register as the live observer. It runs on its own goroutine so the
// caller's startup path never blocks; lifecycle progress is reported only
// through the asynchronous status callback.
//
// A session is single-use. When it fails, the caller may start a fresh one;
// nothing persists across sessions.
type Session struct {
	cfg    sessionConfig
	logger *slog.Logger
	msink  metrics.MetricSink
	mirror *Mirror

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	lk       sync.Mutex
	state    SessionState
	err      error
	endpoint *Endpoint
	client   *Client

	closeOnce sync.Once
}

// StartSession validates the options and launches the coordinator
// goroutine. It returns immediately; observe progress via the status
// callback, State and Done.
func StartSession(opts ...Option) (*Session, error) {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	s := &Session{
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.logHandler == nil {
		s.logger = slog.Default()
	} else {
		s.logger = slog.New(cfg.logHandler)
	}

	if cfg.msink == nil {
		s.msink = metrics.Default()
	} else {
		s.msink = cfg.msink
	}

	s.mirror = newMirror(s.logger, s.msink, cfg.labels)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.run()
	return s, nil
}

// Mirror returns the session's state mirror. It is valid immediately but
// only fully populated once the session reaches StateLive.
func (s *Session) Mirror() *Mirror {
	return s.mirror
}

// State returns the coordinator's current stage.
func (s *Session) State() SessionState {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.state
}

// Err returns the terminal failure, nil unless State is StateFailed.
func (s *Session) Err() error {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.err
}

// Done is closed when the coordinator's active duties end: either StateLive
// was reached (live updates keep flowing afterwards) or the session failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close cancels an in-progress bootstrap, best-effort notifies the
// authority that the observer is gone, and releases the sockets. A failed
// unregister never blocks shutdown.
func (s *Session) Close() error {
	s.cancel()
	<-s.done

	s.closeOnce.Do(func() {
		s.lk.Lock()
		client := s.client
		endpoint := s.endpoint
		live := s.state == StateLive
		s.lk.Unlock()

		if live && client != nil {
			s.logger.Info("shutdown: unregister observer")
			if err := client.Send(Message{Pattern: CmdUnregisterObserver}); err != nil {
				// swallowed, shutdown must not block on the remote
				s.logger.Debug("unregister failed", "error", err)
			}
		}
		if endpoint != nil {
			endpoint.Close()
		}
	})
	return nil
}

func (s *Session) run() {
	defer close(s.done)

	remote := s.discover()
	if s.ctx.Err() != nil {
		s.fail(ErrSessionClosed)
		return
	}

	if err := s.connect(remote); err != nil {
		s.logger.Error("failed to open the transport", "error", err)
		s.fail(err)
		return
	}

	if err := s.fetch(); err != nil {
		if errors.Is(err, ErrBootstrapTimeout) {
			s.status("")
			s.status("ERROR: no answer from the remote controller received")
			s.status("Start aborted, make sure the controller instance is running and restart")
		}
		s.fail(err)
		return
	}

	s.register()
}

// discover locates the authority, downgrading to the static default
// endpoint when nobody answers. Discovery failure is never fatal.
func (s *Session) discover() RemoteEndpoint {
	s.setState(StateDiscovering)
	fallback := RemoteEndpoint{Host: s.cfg.authorityHost, Port: s.cfg.authorityPort}
	if s.cfg.skipDiscovery {
		return fallback
	}

	s.status("Detect remote controller service")
	found, err := Discover(s.cfg.discoveryTimeout, s.logger)
	if err != nil {
		s.logger.Warn("service discovery failed", "error", err)
		s.statusf("... not found, use default port %d", fallback.Port)
		return fallback
	}
	s.statusf("... found on port %d, ip: %s", found.Port, found.Host)
	return found
}

// connect opens both directions of the channel: the locally-bound endpoint
// for inbound replies and the authority-facing client handle. Failure here
// is fatal for the session, no further progress is possible.
func (s *Session) connect(remote RemoteEndpoint) error {
	s.setState(StateConnecting)
	s.logger.Info("remote target", "host", remote.Host, "port", remote.Port)

	s.status("Start local endpoint")
	endpoint, err := NewEndpoint(&EndpointConfig{
		BindAddr:     s.cfg.localBindAddr,
		BindPort:     s.cfg.localPort,
		Handler:      s.handleMessage,
		MetricLabels: s.cfg.labels,
		MetricSink:   s.msink,
		LogHandler:   s.cfg.logHandler,
	})
	if err != nil {
		return err
	}
	s.status(" ... started")

	s.status("Connect to remote controller")
	client, err := NewClient(endpoint, remote.Host, remote.Port)
	if err != nil {
		endpoint.Close()
		return err
	}
	s.status(" ... done")

	s.lk.Lock()
	s.endpoint = endpoint
	s.client = client
	s.lk.Unlock()
	return nil
}

// fetch drives the bounded retry loop: re-request every still-pending
// state kind, wait one interval for replies to arrive asynchronously,
// prune what landed. Replies match by command symbol, so arrival order and
// duplicates do not matter. The interval wait is a cooperative yield point
// interruptible by Close.
func (s *Session) fetch() error {
	s.setState(StateFetching)

	pending := make(map[string]bool, len(bootstrapCommands))
	for _, symbol := range bootstrapCommands {
		pending[symbol] = true
	}

	timer := time.NewTimer(s.cfg.retryInterval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		for _, symbol := range bootstrapCommands {
			if !pending[symbol] {
				continue
			}
			s.logger.Info("requesting state", "command", symbol)
			if err := s.client.Send(Message{Pattern: symbol}); err != nil {
				s.logger.Error("failed to send state request", "command", symbol, "error", err)
			}
		}

		timer.Reset(s.cfg.retryInterval)
		select {
		case <-s.ctx.Done():
			return ErrSessionClosed
		case <-timer.C:
		}

		for symbol := range pending {
			kind, _ := KindForCommand(symbol)
			if s.mirror.Received(kind) {
				delete(pending, symbol)
			}
		}
		if len(pending) == 0 {
			return nil
		}

		if attempt >= s.cfg.maxRetries {
			s.logger.Error("bootstrap gave up", "attempts", attempt, "missing", len(pending))
			return ErrBootstrapTimeout
		}
		s.msink.IncrCounterWithLabels(MetricBootstrapRetries, 1.0, s.cfg.labels)
	}
}

// register announces this mirror as the authority's visual observer. The
// send is fire-and-forget: the protocol has no acknowledgement for it, so
// the session goes live regardless.
func (s *Session) register() {
	s.setState(StateRegistering)
	s.status("Register for live updates")
	if err := s.client.Send(Message{Pattern: CmdRegisterObserver}); err != nil {
		s.logger.Error("failed to send observer registration", "error", err)
	}

	s.mirror.markLive()
	s.setState(StateLive)
	s.status("Connection established")
}

// handleMessage serves inbound replies in every state: during FETCHING it
// populates the mirror, and exactly the same path applies live pushes
// afterwards. Unrecognized symbols are logged and ignored, never fatal.
func (s *Session) handleMessage(msg Message) {
	cmd, err := ResolveCommand(msg.Pattern)
	if err != nil {
		s.logger.Warn("unknown message", "pattern", msg.Pattern, "remote", msg.Source)
		return
	}

	kind, ok := KindForCommand(cmd.Symbol)
	if !ok {
		s.logger.Debug("ignoring non-reply message", "command", cmd.Symbol)
		return
	}

	first := !s.mirror.Received(kind)
	if err := s.mirror.Apply(cmd, msg.Blob); err != nil {
		s.logger.Warn("failed to reassemble reply", "command", cmd.Symbol, "error", err)
		return
	}

	if first {
		if kind == KindVersion {
			s.statusf("Found remote controller version %s", s.mirror.Version())
		} else {
			s.statusf("Received %s", kind)
		}
	}
}

func (s *Session) setState(state SessionState) {
	s.lk.Lock()
	s.state = state
	s.lk.Unlock()
	s.logger.Debug("session state change", "state", state)
}

// fail marks the terminal state and releases the transport so a failed
// session never leaks its sockets.
func (s *Session) fail(err error) {
	s.lk.Lock()
	s.state = StateFailed
	s.err = err
	endpoint := s.endpoint
	s.lk.Unlock()

	if endpoint != nil {
		endpoint.Close()
	}
}

func (s *Session) status(line string) {
	if s.cfg.status != nil {
		s.cfg.status(line)
	}
}

func (s *Session) statusf(format string, args ...any) {
	s.status(fmt.Sprintf(format, args...))
}
