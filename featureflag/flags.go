package featureflag

type Flag string

const (
	// Caps ray traversals to the historical 20 boundary crossings.
	FlagLegacyStepCap Flag = "LEGACY_STEP_CAP"

	// Omits the visited positions from cast responses.
	FlagDisableTrace Flag = "DISABLE_TRACE"

	FlagDisableWebSocket Flag = "DISABLE_WEBSOCKET"
	FlagDisableSmokeTest Flag = "DISABLE_SMOKE_TEST"
)

var knownFlags = map[Flag]struct{}{
	FlagLegacyStepCap:    {},
	FlagDisableTrace:     {},
	FlagDisableWebSocket: {},
	FlagDisableSmokeTest: {},
}

func (f Flag) Known() bool {
	_, ok := knownFlags[f]
	return ok
}
