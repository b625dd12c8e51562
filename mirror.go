package pixsync

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-metrics"
)

// setupSteps is the total number of bootstrap steps shown to the user:
// one per fetched state kind plus the final observer registration.
const setupSteps = 12

// Mirror is the requester-owned read copy of the authority state. Each slot
// starts absent, is set once during bootstrap and may be overwritten by
// later replies or live pushes; duplicate replies overwrite idempotently.
// Slot access is safe across the receive goroutine and any reader.
type Mirror struct {
	lk       sync.RWMutex
	received map[StateKind]bool
	live     bool

	version  string
	config   Config
	matrix   MatrixLayout
	colors   []ColorSet
	output   OutputSnapshot
	uiState  UIState
	mappings []OutputMapping
	presets  PresetSettings
	stats    Statistics
	files    FileLocation
	image    ImageBuffer

	events UIStateEvents
	logger *slog.Logger
	msink  metrics.MetricSink
	labels []metrics.Label
}

func newMirror(logger *slog.Logger, msink metrics.MetricSink, labels []metrics.Label) *Mirror {
	return &Mirror{
		received: make(map[StateKind]bool),
		logger:   logger,
		msink:    msink,
		labels:   labels,
	}
}

// Apply stores one reply blob into the slot its command populates. It is
// deliberately permissive: any valid reply updates its slot whether or not
// it was explicitly requested, so late replies from an aborted session
// still populate state correctly. A deserialization failure leaves the
// slot unset so a pending bootstrap retry re-requests it.
func (m *Mirror) Apply(cmd Command, blob []byte) error {
	kind, ok := KindForCommand(cmd.Symbol)
	if !ok {
		return fmt.Errorf("%w: %s carries no state kind", ErrUnknownCommand, cmd.Symbol)
	}

	var uiUpdate UIState

	m.lk.Lock()
	var err error
	switch kind {
	case KindVersion:
		err = UnmarshalState(blob, &m.version)
	case KindConfig:
		err = UnmarshalState(blob, &m.config)
	case KindMatrixLayout:
		err = UnmarshalState(blob, &m.matrix)
	case KindColorSets:
		err = UnmarshalState(blob, &m.colors)
	case KindOutputSnapshot:
		err = UnmarshalState(blob, &m.output)
	case KindUIState:
		err = UnmarshalState(blob, &m.uiState)
	case KindOutputMapping:
		err = UnmarshalState(blob, &m.mappings)
	case KindPresetSettings:
		err = UnmarshalState(blob, &m.presets)
	case KindStatistics:
		err = UnmarshalState(blob, &m.stats)
	case KindFileLocation:
		err = UnmarshalState(blob, &m.files)
	case KindImageBuffer:
		err = UnmarshalState(blob, &m.image)
	}
	if err == nil {
		m.received[kind] = true
		if kind == KindUIState {
			uiUpdate = m.uiState
		}
	}
	m.lk.Unlock()

	if err != nil {
		m.msink.IncrCounterWithLabels(MetricMirrorUpdateErrors, 1.0,
			append(m.labels, LabelKind.M(kind.String())))
		return err
	}

	m.logger.Debug("mirror slot updated", "kind", kind)
	m.msink.IncrCounterWithLabels(MetricMirrorUpdateCount, 1.0,
		append(m.labels, LabelKind.M(kind.String())))
	if uiUpdate != nil {
		m.events.Publish(uiUpdate)
	}
	return nil
}

// Received reports whether the slot for the given kind holds a value.
func (m *Mirror) Received(kind StateKind) bool {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.received[kind]
}

// Initialized reports whether every required bootstrap slot is populated.
func (m *Mirror) Initialized() bool {
	m.lk.RLock()
	defer m.lk.RUnlock()
	for _, symbol := range bootstrapCommands {
		kind, _ := KindForCommand(symbol)
		if !m.received[kind] {
			return false
		}
	}
	return true
}

// SetupProgress reports the bootstrap completion fraction in [0, 1] for
// presentation-layer progress bars.
func (m *Mirror) SetupProgress() float64 {
	m.lk.RLock()
	defer m.lk.RUnlock()
	if m.live {
		return 1
	}
	return float64(len(m.received)) / setupSteps
}

// SubscribeUIState registers a listener for live UI-state pushes and
// returns its cancel function.
func (m *Mirror) SubscribeUIState(fn UIStateListener) (cancel func()) {
	return m.events.Subscribe(fn)
}

func (m *Mirror) markLive() {
	m.lk.Lock()
	m.live = true
	m.lk.Unlock()
}

func (m *Mirror) Version() string {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.version
}

func (m *Mirror) Config() Config {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.config
}

func (m *Mirror) MatrixLayout() MatrixLayout {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.matrix
}

func (m *Mirror) ColorSets() []ColorSet {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.colors
}

func (m *Mirror) OutputSnapshot() OutputSnapshot {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.output
}

func (m *Mirror) UIState() UIState {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.uiState
}

func (m *Mirror) OutputMappings() []OutputMapping {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.mappings
}

func (m *Mirror) PresetSettings() PresetSettings {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.presets
}

func (m *Mirror) Statistics() Statistics {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.stats
}

func (m *Mirror) FileLocation() FileLocation {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.files
}

func (m *Mirror) ImageBuffer() ImageBuffer {
	m.lk.RLock()
	defer m.lk.RUnlock()
	return m.image
}
