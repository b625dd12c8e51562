package pixsync

import (
	"fmt"
)

// CommandGroup splits the command set into the internal bootstrap/control
// plane and the operational visual-control plane.
type CommandGroup uint8

const (
	GroupInternal CommandGroup = iota
	GroupOperational
)

func (g CommandGroup) String() string {
	switch g {
	case GroupInternal:
		return "internal"
	case GroupOperational:
		return "operational"
	default:
		return "unknown"
	}
}

// Command is one entry of the closed command set. The table is defined once
// at process start and never mutated.
type Command struct {
	Symbol   string
	ArgCount int
	Group    CommandGroup

	// freeform commands carry an intentionally variable argument shape
	// (realtime parameter generators) and bypass arg-count enforcement.
	freeform bool
}

// Internal bootstrap/control commands. The eleven GET_* symbols form the
// required bootstrap set; REGISTER/UNREGISTER manage the live observer.
const (
	CmdGetVersion        = "GET_VERSION"
	CmdGetConfiguration  = "GET_CONFIGURATION"
	CmdGetMatrixData     = "GET_MATRIXDATA"
	CmdGetColorSets      = "GET_COLORSETS"
	CmdGetOutput         = "GET_OUTPUT"
	CmdGetGuiState       = "GET_GUISTATE"
	CmdGetOutputMapping  = "GET_OUTPUTMAPPING"
	CmdGetPresetSettings = "GET_PRESETSETTINGS"
	CmdGetStatistics     = "GET_STATISTICS"
	CmdGetFileLocation   = "GET_FILELOCATION"
	CmdGetImageBuffer    = "GET_IMAGEBUFFER"

	CmdRegisterObserver   = "REGISTER_VISUALOBSERVER"
	CmdUnregisterObserver = "UNREGISTER_VISUALOBSERVER"
)

// Operational visual-control commands, served from any sender.
const (
	CmdChangeGeneratorA   = "CHANGE_GENERATOR_A"
	CmdChangeGeneratorB   = "CHANGE_GENERATOR_B"
	CmdChangeEffectA      = "CHANGE_EFFECT_A"
	CmdChangeEffectB      = "CHANGE_EFFECT_B"
	CmdChangeMixer        = "CHANGE_MIXER"
	CmdChangeOutputVisual = "CHANGE_OUTPUT_VISUAL"
	CmdChangeOutputFader  = "CHANGE_OUTPUT_FADER"
	CmdChangeAllVisual    = "CHANGE_ALL_OUTPUT_VISUAL"
	CmdChangeAllFader     = "CHANGE_ALL_OUTPUT_FADER"
	CmdCurrentVisual      = "CURRENT_VISUAL"
	CmdCurrentColorSet    = "CURRENT_COLORSET"
	CmdChangeBrightness   = "CHANGE_BRIGHTNESS"
	CmdGeneratorSpeed     = "GENERATOR_SPEED"
	CmdChangePreset       = "CHANGE_PRESET"
	CmdLoadPreset         = "LOAD_PRESET"
	CmdSavePreset         = "SAVE_PRESET"
	CmdRandomize          = "RANDOMIZE"
	CmdPresetRandom       = "PRESET_RANDOM"
	CmdFreeze             = "FREEZE"
	CmdImage              = "IMAGE"
	CmdOscGenerator1      = "OSC_GENERATOR1"
	CmdOscGenerator2      = "OSC_GENERATOR2"
)

var commandTable = map[string]Command{
	CmdGetVersion:        {Symbol: CmdGetVersion, Group: GroupInternal},
	CmdGetConfiguration:  {Symbol: CmdGetConfiguration, Group: GroupInternal},
	CmdGetMatrixData:     {Symbol: CmdGetMatrixData, Group: GroupInternal},
	CmdGetColorSets:      {Symbol: CmdGetColorSets, Group: GroupInternal},
	CmdGetOutput:         {Symbol: CmdGetOutput, Group: GroupInternal},
	CmdGetGuiState:       {Symbol: CmdGetGuiState, Group: GroupInternal},
	CmdGetOutputMapping:  {Symbol: CmdGetOutputMapping, Group: GroupInternal},
	CmdGetPresetSettings: {Symbol: CmdGetPresetSettings, Group: GroupInternal},
	CmdGetStatistics:     {Symbol: CmdGetStatistics, Group: GroupInternal},
	CmdGetFileLocation:   {Symbol: CmdGetFileLocation, Group: GroupInternal},
	CmdGetImageBuffer:    {Symbol: CmdGetImageBuffer, Group: GroupInternal},

	CmdRegisterObserver:   {Symbol: CmdRegisterObserver, Group: GroupInternal},
	CmdUnregisterObserver: {Symbol: CmdUnregisterObserver, Group: GroupInternal},

	CmdChangeGeneratorA:   {Symbol: CmdChangeGeneratorA, ArgCount: 1, Group: GroupOperational},
	CmdChangeGeneratorB:   {Symbol: CmdChangeGeneratorB, ArgCount: 1, Group: GroupOperational},
	CmdChangeEffectA:      {Symbol: CmdChangeEffectA, ArgCount: 1, Group: GroupOperational},
	CmdChangeEffectB:      {Symbol: CmdChangeEffectB, ArgCount: 1, Group: GroupOperational},
	CmdChangeMixer:        {Symbol: CmdChangeMixer, ArgCount: 1, Group: GroupOperational},
	CmdChangeOutputVisual: {Symbol: CmdChangeOutputVisual, ArgCount: 2, Group: GroupOperational},
	CmdChangeOutputFader:  {Symbol: CmdChangeOutputFader, ArgCount: 2, Group: GroupOperational},
	CmdChangeAllVisual:    {Symbol: CmdChangeAllVisual, ArgCount: 1, Group: GroupOperational},
	CmdChangeAllFader:     {Symbol: CmdChangeAllFader, ArgCount: 1, Group: GroupOperational},
	CmdCurrentVisual:      {Symbol: CmdCurrentVisual, ArgCount: 1, Group: GroupOperational},
	CmdCurrentColorSet:    {Symbol: CmdCurrentColorSet, ArgCount: 1, Group: GroupOperational},
	CmdChangeBrightness:   {Symbol: CmdChangeBrightness, ArgCount: 1, Group: GroupOperational},
	CmdGeneratorSpeed:     {Symbol: CmdGeneratorSpeed, ArgCount: 1, Group: GroupOperational},
	CmdChangePreset:       {Symbol: CmdChangePreset, ArgCount: 1, Group: GroupOperational},
	CmdLoadPreset:         {Symbol: CmdLoadPreset, Group: GroupOperational},
	CmdSavePreset:         {Symbol: CmdSavePreset, Group: GroupOperational},
	CmdRandomize:          {Symbol: CmdRandomize, Group: GroupOperational},
	CmdPresetRandom:       {Symbol: CmdPresetRandom, Group: GroupOperational},
	CmdFreeze:             {Symbol: CmdFreeze, Group: GroupOperational},
	CmdImage:              {Symbol: CmdImage, ArgCount: 1, Group: GroupOperational},
	CmdOscGenerator1:      {Symbol: CmdOscGenerator1, Group: GroupOperational, freeform: true},
	CmdOscGenerator2:      {Symbol: CmdOscGenerator2, Group: GroupOperational, freeform: true},
}

// bootstrapCommands is the required fetch set, in request order.
var bootstrapCommands = []string{
	CmdGetVersion,
	CmdGetConfiguration,
	CmdGetMatrixData,
	CmdGetColorSets,
	CmdGetOutput,
	CmdGetGuiState,
	CmdGetOutputMapping,
	CmdGetPresetSettings,
	CmdGetStatistics,
	CmdGetFileLocation,
	CmdGetImageBuffer,
}

// BootstrapCommands returns the command symbols a mirror must fetch before
// it is considered initialized.
func BootstrapCommands() []string {
	out := make([]string, len(bootstrapCommands))
	copy(out, bootstrapCommands)
	return out
}

// ResolveCommand maps a message pattern to its command table entry.
func ResolveCommand(pattern string) (Command, error) {
	cmd, ok := commandTable[pattern]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, pattern)
	}
	return cmd, nil
}

// ValidateArgs checks the scalar argument count of an inbound message.
// A blob supersedes positional args, and freeform commands are exempt
// entirely since their argument shape is variable.
func (c Command) ValidateArgs(provided int, hasBlob bool) error {
	if c.freeform || hasBlob {
		return nil
	}
	if provided != c.ArgCount {
		return fmt.Errorf("%w: %s expects %d, got %d",
			ErrArgumentCount, c.Symbol, c.ArgCount, provided)
	}
	return nil
}
