package pixsync

// StateKind identifies one slot of the mirrored authority state.
type StateKind uint8

const (
	KindVersion StateKind = iota
	KindConfig
	KindMatrixLayout
	KindColorSets
	KindOutputSnapshot
	KindUIState
	KindOutputMapping
	KindPresetSettings
	KindStatistics
	KindFileLocation
	KindImageBuffer
)

func (k StateKind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindConfig:
		return "configuration"
	case KindMatrixLayout:
		return "matrix layout"
	case KindColorSets:
		return "color sets"
	case KindOutputSnapshot:
		return "output snapshot"
	case KindUIState:
		return "ui state"
	case KindOutputMapping:
		return "output mapping"
	case KindPresetSettings:
		return "preset settings"
	case KindStatistics:
		return "statistics"
	case KindFileLocation:
		return "file locations"
	case KindImageBuffer:
		return "image buffer"
	default:
		return "unknown"
	}
}

var commandKinds = map[string]StateKind{
	CmdGetVersion:        KindVersion,
	CmdGetConfiguration:  KindConfig,
	CmdGetMatrixData:     KindMatrixLayout,
	CmdGetColorSets:      KindColorSets,
	CmdGetOutput:         KindOutputSnapshot,
	CmdGetGuiState:       KindUIState,
	CmdGetOutputMapping:  KindOutputMapping,
	CmdGetPresetSettings: KindPresetSettings,
	CmdGetStatistics:     KindStatistics,
	CmdGetFileLocation:   KindFileLocation,
	CmdGetImageBuffer:    KindImageBuffer,
}

// KindForCommand maps a bootstrap command symbol to the state slot its
// reply populates.
func KindForCommand(symbol string) (StateKind, bool) {
	kind, ok := commandKinds[symbol]
	return kind, ok
}

// Config is a snapshot of the authority's effective application
// configuration. Static per session.
type Config struct {
	Screens           int     `cbor:"screens"`
	AdditionalVisuals int     `cbor:"additional_visuals"`
	TargetFPS         float32 `cbor:"target_fps"`
	OutputDevice      string  `cbor:"output_device"`
	GammaCorrection   bool    `cbor:"gamma_correction"`
	SoundAware        bool    `cbor:"sound_aware"`
}

// Visuals is the number of visuals the frontend should present: one per
// screen, one preview, plus any configured extras.
func (c Config) Visuals() int {
	return c.Screens + 1 + c.AdditionalVisuals
}

// MatrixLayout describes the geometry of the target display.
type MatrixLayout struct {
	Width  int `cbor:"width"`
	Height int `cbor:"height"`
}

// ColorSet is a named palette applied to generated frames.
type ColorSet struct {
	Name   string   `cbor:"name"`
	Colors []uint32 `cbor:"colors"`
}

// OutputMapping assigns a visual and a fader to one physical output.
type OutputMapping struct {
	Output int `cbor:"output"`
	Visual int `cbor:"visual"`
	Fader  int `cbor:"fader"`
}

// OutputSnapshot is the current state of the physical output device.
type OutputSnapshot struct {
	Name      string `cbor:"name"`
	Type      string `cbor:"type"`
	Connected bool   `cbor:"connected"`
	Error     string `cbor:"error,omitempty"`
}

// UIState is the frontend-relevant portion of the authority's visual state,
// as a flat list of key/value command fragments. It is the only kind pushed
// unsolicited to a registered observer.
type UIState []string

// PresetSettings holds the preset bank and the active selection.
type PresetSettings struct {
	Selected int      `cbor:"selected"`
	Names    []string `cbor:"names"`
}

// Statistics is a monotonic traffic and pipeline counter snapshot.
type Statistics struct {
	PacketsReceived uint64  `cbor:"packets_received"`
	BytesReceived   uint64  `cbor:"bytes_received"`
	FrameCount      uint64  `cbor:"frame_count"`
	CurrentFPS      float32 `cbor:"current_fps"`
	StartTime       int64   `cbor:"start_time"`
}

// FileLocation tells a remote frontend where the authority keeps its
// on-disk resources.
type FileLocation struct {
	DataDir     string `cbor:"data_dir"`
	ImageDir    string `cbor:"image_dir"`
	PresetsFile string `cbor:"presets_file"`
	ConfigFile  string `cbor:"config_file"`
}

// ImageBuffer carries the rendered pixel buffers: one per visual and one
// per physical output. Sized to fit a single datagram, see MaxPayloadSize.
type ImageBuffer struct {
	Visuals [][]uint32 `cbor:"visuals"`
	Outputs [][]uint32 `cbor:"outputs"`
}
