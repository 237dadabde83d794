package block

// State is the lifecycle state of a block instance.
type State uint8

const (
	// StateUnregistered is the zero value; no instance exists.
	StateUnregistered State = 0

	// StateCreated means runtime state is allocated. Creation advances
	// immediately to StateNotInitialized, so this state is transient.
	StateCreated State = 1

	// StateNotInitialized means the block needs a successful Init before Run.
	StateNotInitialized State = 2

	// StateRunning means the block executes its pipeline on every Run.
	StateRunning State = 3

	// StateLocked is terminal: an internal inconsistency was detected.
	// Recovery requires a fresh Create/Init cycle.
	StateLocked State = 4
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateCreated:
		return "CREATED"
	case StateNotInitialized:
		return "NOT_INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Mode is the operating sub-state of a running block.
type Mode uint8

const (
	// ModeRelease computes normally.
	ModeRelease Mode = 0

	// ModeFreezeInput runs the pipeline against the last accepted input.
	ModeFreezeInput Mode = 1

	// ModeFreezeOutput computes and detects faults but holds the published
	// output.
	ModeFreezeOutput Mode = 2

	// ModeInactive skips the cycle entirely; Run reports no action.
	ModeInactive Mode = 3
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRelease:
		return "RELEASE"
	case ModeFreezeInput:
		return "FREEZE_INPUT"
	case ModeFreezeOutput:
		return "FREEZE_OUTPUT"
	case ModeInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the mode is a defined operating mode.
func (m Mode) Valid() bool {
	return m <= ModeInactive
}

// ReactionPolicy selects the block's behavior while an input fault is active.
// The policy is a property: changing it requires ReInit.
type ReactionPolicy uint8

const (
	// ReactionErrorToOutput marks the output invalid and holds the last value.
	ReactionErrorToOutput ReactionPolicy = 0

	// ReactionFreezeInput holds the last valid output until the fault clears.
	ReactionFreezeInput ReactionPolicy = 1

	// ReactionParameterToInput substitutes the configured default input value
	// and keeps computing as if it were live input.
	ReactionParameterToInput ReactionPolicy = 2
)

// String returns the policy name.
func (p ReactionPolicy) String() string {
	switch p {
	case ReactionErrorToOutput:
		return "ERROR_TO_OUTPUT"
	case ReactionFreezeInput:
		return "FREEZE_INPUT"
	case ReactionParameterToInput:
		return "PARAMETER_TO_INPUT"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the policy is a defined reaction policy.
func (p ReactionPolicy) Valid() bool {
	return p <= ReactionParameterToInput
}
