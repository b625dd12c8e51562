package pixsync

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-metrics"
)

// MessageHandler consumes every well-formed inbound message of an endpoint.
// It runs on the endpoint's receive goroutine and must not block on slow
// work; in particular it must never wait on the visual pipeline.
type MessageHandler func(Message)

// EphemeralPort requests a kernel-assigned port instead of a well-known
// one.
const EphemeralPort = -1

// EndpointConfig configures one UDP endpoint.
type EndpointConfig struct {
	// BindAddr and BindPort are where the endpoint listens. Use
	// EphemeralPort to let the kernel pick.
	BindAddr string
	BindPort int

	// Handler receives decoded inbound messages.
	Handler MessageHandler

	// MetricLabels to add to every metric emitted by the endpoint.
	MetricLabels []metrics.Label

	// MetricSink to use for emitting metrics.
	MetricSink metrics.MetricSink

	// LogHandler to use for emitting structured logs.
	LogHandler slog.Handler
}

// Endpoint owns a UDP socket and serves both directions: a receive loop on
// a dedicated goroutine decodes inbound datagrams into the handler, and
// Send/SendTo write outbound frames from the same socket so replies reach
// this endpoint's well-known port.
//
// The endpoint also owns the traffic statistics counters: every inbound
// datagram is counted before decoding, so malformed or unknown-command
// traffic still shows up — the counters measure transport load, not
// protocol success.
type Endpoint struct {
	cfg    *EndpointConfig
	logger *slog.Logger
	msink  metrics.MetricSink

	conn *net.UDPConn

	// graceful termination asked, do not spam connection errors in logs
	gracefulTerm atomic.Bool
	wg           sync.WaitGroup

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewEndpoint binds the socket and starts the receive loop.
func NewEndpoint(cfg *EndpointConfig) (*Endpoint, error) {
	e := &Endpoint{cfg: cfg}

	if cfg.LogHandler == nil {
		e.logger = slog.Default()
	} else {
		e.logger = slog.New(cfg.LogHandler)
	}

	if cfg.MetricSink == nil {
		e.msink = metrics.Default()
	} else {
		e.msink = cfg.MetricSink
	}

	addr := net.ParseIP(cfg.BindAddr)
	if addr == nil {
		addr = net.IPv4zero
	}

	port := cfg.BindPort
	if port == EphemeralPort {
		port = 0
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: addr, Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransportBind, err)
	}
	e.conn = conn

	e.wg.Add(1)
	go e.receiveLoop()
	return e, nil
}

// LocalAddr returns the bound address, with the effective port when an
// ephemeral one was requested.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Counters returns the monotonic packet and byte counters.
func (e *Endpoint) Counters() (packets, bytes uint64) {
	return e.packets.Load(), e.bytes.Load()
}

// SendTo encodes and writes one message to the given peer.
func (e *Endpoint) SendTo(target *net.UDPAddr, msg Message) error {
	if e.gracefulTerm.Load() {
		return ErrShutdown
	}

	frame := EncodeMessage(msg)
	if len(frame) > MaxPayloadSize {
		return fmt.Errorf("%w: frame is %d bytes", ErrPayloadTooLarge, len(frame))
	}

	mLabels := append(e.cfg.MetricLabels, LabelPeerAddr.M(target.String()))
	_, err := e.conn.WriteToUDP(frame, target)
	if err != nil {
		e.msink.IncrCounterWithLabels(MetricDatagramOutErrors, 1.0, mLabels)
		return fmt.Errorf("transport: send to %s: %w", target, err)
	}
	e.msink.IncrCounterWithLabels(MetricDatagramOutBytes, float32(len(frame)), mLabels)
	return nil
}

// Close releases the socket and stops the receive loop. It is idempotent
// and safe to call concurrently with in-flight sends.
func (e *Endpoint) Close() error {
	if !e.gracefulTerm.CompareAndSwap(false, true) {
		return nil
	}
	err := e.conn.Close()
	e.wg.Wait()
	return err
}

func (e *Endpoint) receiveLoop() {
	defer e.wg.Done()

	buf := make([]byte, MaxPayloadSize)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if e.gracefulTerm.Load() {
				e.logger.Debug("receive loop gracefully shutting down")
				return
			}
			e.logger.Error("error reading UDP packet", "error", err)
			continue
		}

		e.packets.Add(1)
		e.bytes.Add(uint64(n))
		mLabels := append(e.cfg.MetricLabels, LabelPeerAddr.M(from.String()))
		e.msink.IncrCounterWithLabels(MetricDatagramInPackets, 1.0, mLabels)
		e.msink.IncrCounterWithLabels(MetricDatagramInBytes, float32(n), mLabels)

		// the receive buffer is reused, decode from a private copy so
		// the handler may retain args and blob
		frame := make([]byte, n)
		copy(frame, buf[:n])

		msg, err := DecodeMessage(frame)
		if err != nil {
			e.msink.IncrCounterWithLabels(MetricDecodeErrorCount, 1.0, mLabels)
			e.logger.Warn("dropping malformed datagram", "remote", from, "error", err)
			continue
		}
		if msg.Pattern == "" {
			e.logger.Info("ignoring empty message", "remote", from)
			continue
		}

		msg.Source = from
		if e.cfg.Handler != nil {
			e.cfg.Handler(msg)
		}
	}
}

// Client is an amortized handle towards one peer: it remembers the resolved
// target address and writes through an endpoint's socket, so the peer's
// replies come back to that endpoint. It is not a per-request resource;
// callers cache it and re-establish only when the peer address changes.
type Client struct {
	endpoint *Endpoint
	target   *net.UDPAddr
}

// NewClient resolves the target once and binds the handle to the endpoint.
func NewClient(endpoint *Endpoint, host string, port int) (*Client, error) {
	target, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s:%d: %w", ErrTransportBind, host, port, err)
	}
	return &Client{endpoint: endpoint, target: target}, nil
}

// Target returns the resolved peer address.
func (c *Client) Target() *net.UDPAddr {
	return c.target
}

// Send writes one message to the peer.
func (c *Client) Send(msg Message) error {
	return c.endpoint.SendTo(c.target, msg)
}
