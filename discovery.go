package pixsync

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the well-known mDNS service identifier of an authority.
const ServiceType = "_pixelcontroller._udp"

const (
	// DefaultAuthorityHost and DefaultAuthorityPort are the static
	// fallback used when discovery finds nothing.
	DefaultAuthorityHost = "pixelcontroller.local"
	DefaultAuthorityPort = 9876

	// DefaultMirrorPort is where the mirror's own inbound endpoint
	// listens. It differs from the authority port so both roles can share
	// one host.
	DefaultMirrorPort = 9875

	// DefaultDiscoveryTimeout bounds the one-shot service query.
	DefaultDiscoveryTimeout = 6 * time.Second
)

// RemoteEndpoint is a discovered (or fallback) authority address.
type RemoteEndpoint struct {
	Host string
	Port int
}

func (ep RemoteEndpoint) String() string {
	return fmt.Sprintf("%s:%d", ep.Host, ep.Port)
}

// Discover runs one bounded multicast query for an authority instance.
// Absence of a responder is a normal outcome and surfaces as
// ErrDiscoveryTimeout; callers fall back to the static default endpoint
// instead of failing. Discovery is never retried internally.
func Discover(timeout time.Duration, logger *slog.Logger) (RemoteEndpoint, error) {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan RemoteEndpoint, 1)
	go func() {
		for entry := range entries {
			var host string
			switch {
			case entry.AddrV4 != nil:
				host = entry.AddrV4.String()
			case entry.AddrV6 != nil:
				host = entry.AddrV6.String()
			default:
				continue
			}
			select {
			case found <- RemoteEndpoint{Host: host, Port: entry.Port}:
			default:
			}
		}
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service: ServiceType,
		Timeout: timeout,
		Entries: entries,
	})
	close(entries)
	if err != nil {
		return RemoteEndpoint{}, fmt.Errorf("%w: %w", ErrDiscoveryTimeout, err)
	}

	select {
	case ep := <-found:
		logger.Info("authority discovered", "host", ep.Host, "port", ep.Port)
		return ep, nil
	default:
		return RemoteEndpoint{}, ErrDiscoveryTimeout
	}
}

// Announcer advertises a running authority over mDNS so mirrors on the
// local segment can find it without static configuration.
type Announcer struct {
	srv *mdns.Server
}

// Announce registers the authority service at the given port.
func Announce(instance string, port int) (*Announcer, error) {
	if instance == "" {
		instance = "pixsync-authority"
	}

	service, err := mdns.NewMDNSService(
		instance, ServiceType, "", "", port,
		nil, []string{"pixsync authority"},
	)
	if err != nil {
		return nil, fmt.Errorf("discovery: announce: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: announce: %w", err)
	}
	return &Announcer{srv: srv}, nil
}

// Close stops the advertisement.
func (a *Announcer) Close() error {
	if a == nil || a.srv == nil {
		return nil
	}
	return a.srv.Shutdown()
}
