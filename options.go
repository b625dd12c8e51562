package pixsync

import (
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

type sessionConfig struct {
	authorityHost string
	authorityPort int
	localBindAddr string
	localPort     int

	discoveryTimeout time.Duration
	skipDiscovery    bool

	retryInterval time.Duration
	maxRetries    int

	status     func(string)
	logHandler slog.Handler
	msink      metrics.MetricSink
	labels     []metrics.Label
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		authorityHost:    DefaultAuthorityHost,
		authorityPort:    DefaultAuthorityPort,
		localPort:        DefaultMirrorPort,
		discoveryTimeout: DefaultDiscoveryTimeout,
		retryInterval:    defaultRetryInterval,
		maxRetries:       defaultMaxRetries,
	}
}

// Option to pass to StartSession.
type Option func(*sessionConfig) error

// WithAuthorityEndpoint sets the static authority address used when
// discovery finds nothing, or always when discovery is disabled.
func WithAuthorityEndpoint(host string, port int) Option {
	return func(c *sessionConfig) error {
		if host == "" {
			return errors.New("authority host must not be empty")
		}
		if port <= 0 {
			return errors.New("authority port must be positive")
		}
		c.authorityHost = host
		c.authorityPort = port
		return nil
	}
}

// WithLocalEndpoint specifies where the mirror's own inbound endpoint
// listens. It must differ from the authority's port when both roles share
// one host. Use EphemeralPort to let the kernel pick.
func WithLocalEndpoint(addr string, port int) Option {
	return func(c *sessionConfig) error {
		c.localBindAddr = addr
		c.localPort = port
		return nil
	}
}

// WithDiscoveryTimeout bounds the one-shot mDNS query.
func WithDiscoveryTimeout(timeout time.Duration) Option {
	return func(c *sessionConfig) error {
		if timeout <= 0 {
			timeout = DefaultDiscoveryTimeout
		}
		c.discoveryTimeout = timeout
		return nil
	}
}

// WithoutDiscovery skips the mDNS query entirely and connects straight to
// the configured authority endpoint.
func WithoutDiscovery() Option {
	return func(c *sessionConfig) error {
		c.skipDiscovery = true
		return nil
	}
}

// WithRetryPolicy controls the fetch loop: how long each iteration waits
// for replies and how many iterations run before the session gives up.
func WithRetryPolicy(interval time.Duration, maxRetries int) Option {
	return func(c *sessionConfig) error {
		if interval <= 0 {
			return errors.New("retry interval must be positive")
		}
		if maxRetries <= 0 {
			return errors.New("retry count must be positive")
		}
		c.retryInterval = interval
		c.maxRetries = maxRetries
		return nil
	}
}

// WithStatusCallback registers the asynchronous setup-progress callback.
// Lines are human-readable and arrive on the session's goroutine.
func WithStatusCallback(fn func(string)) Option {
	return func(c *sessionConfig) error {
		c.status = fn
		return nil
	}
}

// WithLog specifies which slog.Handler to use.
func WithLog(handler slog.Handler) Option {
	return func(c *sessionConfig) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to choose how to collect the metrics emitted
// by the session and its endpoint.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *sessionConfig) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by the
// session.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *sessionConfig) error {
		c.labels = labels
		return nil
	}
}
