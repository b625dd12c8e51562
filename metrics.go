package pixsync

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	// MetricDatagramInPackets counts every inbound datagram, valid or not.
	MetricDatagramInPackets  = []string{"pixsync", "datagram", "in", "packets"}
	MetricDatagramInBytes    = []string{"pixsync", "datagram", "in", "bytes"}
	MetricDatagramOutBytes   = []string{"pixsync", "datagram", "out", "bytes"}
	MetricDatagramOutErrors  = []string{"pixsync", "datagram", "out", "error", "count"}
	MetricDecodeErrorCount   = []string{"pixsync", "decode", "error", "count"}
	MetricUnknownCmdCount    = []string{"pixsync", "command", "unknown", "count"}
	MetricArgMismatchCount   = []string{"pixsync", "command", "arg", "mismatch", "count"}
	MetricReplyCount         = []string{"pixsync", "reply", "count"}
	MetricReplyErrorCount    = []string{"pixsync", "reply", "error", "count"}
	MetricObserverPushCount  = []string{"pixsync", "observer", "push", "count"}
	MetricObserverSwapCount  = []string{"pixsync", "observer", "swap", "count"}
	MetricBootstrapRetries   = []string{"pixsync", "bootstrap", "retry", "count"}
	MetricMirrorUpdateCount  = []string{"pixsync", "mirror", "update", "count"}
	MetricMirrorUpdateErrors = []string{"pixsync", "mirror", "update", "error", "count"}
)

type TelemetryLabel string

var (
	LabelError    TelemetryLabel = "error"
	LabelPeerAddr TelemetryLabel = "peer_addr"
	LabelCommand  TelemetryLabel = "command"
	LabelKind     TelemetryLabel = "kind"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
