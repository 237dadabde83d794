package pin

// CaptureDepth is the depth of the timer capture FIFO: at most this many
// period samples arrive per acquisition cycle.
const CaptureDepth = 8

// Status is the electrical diagnosis a pin driver reports alongside its
// measurement.
type Status uint8

const (
	// StatusUnknown means no diagnosis is available.
	StatusUnknown Status = 0

	// StatusOK means the pin measures normally.
	StatusOK Status = 1

	// StatusShortToPower means the pin is shorted against the supply rail.
	StatusShortToPower Status = 2

	// StatusShortToGround means the pin is shorted against ground.
	StatusShortToGround Status = 3

	// StatusOpenLoad means the load is disconnected.
	StatusOpenLoad Status = 4
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusOK:
		return "OK"
	case StatusShortToPower:
		return "SHORT_TO_POWER"
	case StatusShortToGround:
		return "SHORT_TO_GROUND"
	case StatusOpenLoad:
		return "OPEN_LOAD"
	default:
		return "INVALID"
	}
}

// AnalogSample is one conditioned ADC reading in the pin's raw engineering
// unit (uA for current pins, mV for voltage pins).
type AnalogSample struct {
	Raw    int32
	Status Status
}

// AnalogInput supplies raw analog measurements to a block.
//
// Sample is called once per block cycle and must not block. An error return
// signals an unrecoverable acquisition fault, not a wiring condition;
// wiring conditions travel in the sample's Status.
type AnalogInput interface {
	Sample() (AnalogSample, error)
}

// TimerCapture is one acquisition cycle's worth of captured timing data.
type TimerCapture struct {
	// Periods holds the captured period or pulse times in microseconds,
	// oldest first, at most CaptureDepth per cycle.
	Periods []uint32

	// Frequency is the hardware-measured frequency in Hz, populated in
	// the pulse-time capture modes.
	Frequency uint32

	// InputVoltage is the voltage at the pin comparator in mV.
	InputVoltage uint16

	// Status is the electrical diagnosis.
	Status Status
}

// TimerInput supplies period and pulse captures to a block.
//
// Capture is called once per block cycle and must not block; the same error
// contract as AnalogInput.Sample applies.
type TimerInput interface {
	Capture() (TimerCapture, error)
}
