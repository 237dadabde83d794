package blocks

import (
	"fmt"
	"math"
	"time"

	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
	"github.com/ioblock/ioblock-go/pkg/pin"
)

// Fault kinds of the frequency input block.
const (
	FreqKindThresholdLow  fault.Kind = 0
	FreqKindThresholdHigh fault.Kind = 1
	FreqKindParameter     fault.Kind = 2
	FreqKindInternal      fault.Kind = 3
)

// CaptureMode selects what the timer hardware delivers.
type CaptureMode uint8

const (
	// CapturePeriod captures signal periods; the block averages and
	// converts them itself.
	CapturePeriod CaptureMode = 0

	// CapturePulseHigh and CapturePulseLow capture pulse times; the
	// hardware-measured frequency is passed through, scaled to deciHz.
	CapturePulseHigh CaptureMode = 1
	CapturePulseLow  CaptureMode = 2
)

// Valid reports whether the mode is one of the defined capture modes.
func (m CaptureMode) Valid() bool {
	return m <= CapturePulseLow
}

func (m CaptureMode) String() string {
	switch m {
	case CapturePeriod:
		return "PERIOD"
	case CapturePulseHigh:
		return "PULSE_HIGH"
	case CapturePulseLow:
		return "PULSE_LOW"
	default:
		return fmt.Sprintf("CAPTURE_MODE(%d)", uint8(m))
	}
}

// DefaultFreqFaults returns the standard fault table of the frequency
// block: all four kinds are hard faults.
func DefaultFreqFaults() []fault.Config {
	return []fault.Config{
		{Kind: FreqKindThresholdLow, Name: "THRESHOLD_LOW", Class: fault.ClassFault, Enabled: true, Debounce: DefaultFaultDebounce},
		{Kind: FreqKindThresholdHigh, Name: "THRESHOLD_HIGH", Class: fault.ClassFault, Enabled: true, Debounce: DefaultFaultDebounce},
		{Kind: FreqKindParameter, Name: "PARAMETER", Class: fault.ClassFault, Enabled: true},
		{Kind: FreqKindInternal, Name: "INTERNAL", Class: fault.ClassFault, Enabled: true},
	}
}

// FreqProperty is the resolved property snapshot of a frequency input.
type FreqProperty struct {
	// Policy selects the behavior while a threshold fault is latched.
	Policy block.ReactionPolicy

	// Capture selects the acquisition mode.
	Capture CaptureMode

	// SignalLowTolerance and SignalHighTolerance bound the comparator
	// input voltage in mV. A voltage below the low or above the high
	// tolerance detects the matching threshold fault.
	SignalLowTolerance  uint16
	SignalHighTolerance uint16
}

// FreqParameter is the hot-updatable parameter snapshot of a frequency
// input.
type FreqParameter struct {
	// PulsesPerRevolution, RatioMul and RatioDiv scale the converted
	// frequency. Each must be at least 1.
	PulsesPerRevolution uint16
	RatioMul            uint16
	RatioDiv            uint16

	// Timeout holds the last output after the final pulse; once
	// exceeded the output is forced to zero.
	Timeout time.Duration

	// Averaging is the sample count: 0 averages whatever arrived this
	// cycle, 1-8 accumulates across cycles to exactly that count.
	Averaging uint8

	// DefaultInput is the substitute input used by the
	// parameter-to-input reaction policy: a period in microseconds in
	// period mode, a frequency in Hz in the pulse-time modes.
	DefaultInput uint32
}

// FreqPropertyConfig is the linked property template of a frequency input.
type FreqPropertyConfig struct {
	Policy              block.ReactionPolicy `yaml:"policy"`
	Capture             CaptureMode          `yaml:"captureMode"`
	SignalLowTolerance  confdb.Link          `yaml:"signalLowTolerance"`
	SignalHighTolerance confdb.Link          `yaml:"signalHighTolerance"`
}

func (pc FreqPropertyConfig) resolve(p confdb.Provider) (FreqProperty, error) {
	var (
		prop = FreqProperty{Policy: pc.Policy, Capture: pc.Capture}
		err  error
	)
	if prop.SignalLowTolerance, err = resolveU16(p, "signalLowTolerance", pc.SignalLowTolerance); err != nil {
		return FreqProperty{}, err
	}
	if prop.SignalHighTolerance, err = resolveU16(p, "signalHighTolerance", pc.SignalHighTolerance); err != nil {
		return FreqProperty{}, err
	}
	return prop, nil
}

// FreqParameterConfig is the linked parameter template of a frequency
// input. Timeout is in milliseconds.
type FreqParameterConfig struct {
	PulsesPerRevolution confdb.Link `yaml:"pulsesPerRevolution"`
	RatioMul            confdb.Link `yaml:"ratioMul"`
	RatioDiv            confdb.Link `yaml:"ratioDiv"`
	Timeout             confdb.Link `yaml:"timeout"`
	Averaging           confdb.Link `yaml:"averaging"`
	DefaultInput        confdb.Link `yaml:"defaultInput"`
}

func (pc FreqParameterConfig) resolve(p confdb.Provider) (FreqParameter, error) {
	var (
		par FreqParameter
		err error
	)
	if par.PulsesPerRevolution, err = resolveU16(p, "pulsesPerRevolution", pc.PulsesPerRevolution); err != nil {
		return FreqParameter{}, err
	}
	if par.RatioMul, err = resolveU16(p, "ratioMul", pc.RatioMul); err != nil {
		return FreqParameter{}, err
	}
	if par.RatioDiv, err = resolveU16(p, "ratioDiv", pc.RatioDiv); err != nil {
		return FreqParameter{}, err
	}
	if par.Timeout, err = resolveMillis(p, "timeout", pc.Timeout); err != nil {
		return FreqParameter{}, err
	}
	if par.Averaging, err = resolveU8(p, "averaging", pc.Averaging); err != nil {
		return FreqParameter{}, err
	}
	if par.DefaultInput, err = resolveU32(p, "defaultInput", pc.DefaultInput); err != nil {
		return FreqParameter{}, err
	}
	return par, nil
}

// FreqConfig is the creation template of a frequency input block.
type FreqConfig struct {
	// Name identifies the instance; must be non-empty.
	Name string

	// InitialMode is entered on a successful Init.
	InitialMode block.Mode

	// Pin supplies the timer captures. Must be non-nil.
	Pin pin.TimerInput

	// Provider resolves keyed links.
	Provider confdb.Provider

	// Logger receives diagnostic events.
	Logger log.Logger

	// Faults overrides the fault table; nil selects DefaultFreqFaults.
	Faults []fault.Config

	Property  FreqPropertyConfig
	Parameter FreqParameterConfig
}

// FreqOutput is the published result of one frequency block cycle.
type FreqOutput struct {
	// Frequency is the converted frequency in deciHz.
	Frequency uint32

	// Valid reports whether Frequency may be trusted.
	Valid bool

	// InputVoltage and PinStatus are the diagnostics of the consumed
	// capture.
	InputVoltage uint16
	PinStatus    pin.Status
}

// FreqIn is a frequency input block: period or pulse-time captures averaged
// and converted into deciHz, with comparator-voltage threshold faults
// detected in parallel.
type FreqIn struct {
	*block.Core

	cfg  *FreqConfig
	prop FreqProperty
	par  FreqParameter

	lastCapture pin.TimerCapture
	haveCapture bool
	accSum      uint64
	accCount    uint8
	sinceLast   time.Duration
	out         FreqOutput
}

var _ block.Payload = (*FreqIn)(nil)

// NewFreqInput creates a frequency input block in reg. The block is created
// but not initialized; call Init to start it.
func NewFreqInput(reg *block.Registry, cfg *FreqConfig) (*FreqIn, error) {
	const op = "create"
	if cfg == nil || cfg.Pin == nil {
		return nil, &block.Error{Op: op, Status: block.StatusNullPointer}
	}
	faults := cfg.Faults
	if faults == nil {
		faults = DefaultFreqFaults()
	}
	required := []fault.Kind{
		FreqKindThresholdLow, FreqKindThresholdHigh, FreqKindParameter, FreqKindInternal,
	}
	if err := requireKinds(faults, required...); err != nil {
		return nil, &block.Error{Op: op, Block: cfg.Name, Status: block.StatusInvalidConfig, Err: err}
	}

	f := &FreqIn{cfg: cfg}
	core, err := reg.Create(&block.Config{
		Name:          cfg.Name,
		Type:          TypeFreq,
		InitialMode:   cfg.InitialMode,
		Provider:      cfg.Provider,
		Logger:        cfg.Logger,
		Faults:        faults,
		InternalFault: FreqKindInternal,
	}, f)
	if err != nil {
		return nil, err
	}
	f.Core = core
	return f, nil
}

// OpenFreqInput creates and initializes a frequency input block. On an Init
// failure the created block is returned alongside the error.
func OpenFreqInput(reg *block.Registry, cfg *FreqConfig) (*FreqIn, error) {
	f, err := NewFreqInput(reg, cfg)
	if err != nil {
		return nil, err
	}
	return f, f.Init()
}

// Apply resolves and commits both templates. Part of the payload contract.
func (f *FreqIn) Apply(provider confdb.Provider) error {
	const op = "init"
	prop, err := f.cfg.Property.resolve(provider)
	if err != nil {
		return opError(op, f.Name(), err, block.StatusInvalidConfig)
	}
	par, err := f.cfg.Parameter.resolve(provider)
	if err != nil {
		return opError(op, f.Name(), err, block.StatusInvalidConfig)
	}
	return f.commit(op, prop, par)
}

func (f *FreqIn) commit(op string, prop FreqProperty, par FreqParameter) error {
	if err := validateFreqProperty(prop); err != nil {
		return opError(op, f.Name(), err, block.StatusInvalidConfig)
	}
	if err := validateFreqParameter(par); err != nil {
		return opError(op, f.Name(), err, block.StatusInvalidParameter)
	}
	f.prop = prop
	f.par = par
	return nil
}

// Step runs one conversion cycle. Part of the payload contract.
func (f *FreqIn) Step(elapsed time.Duration) error {
	capture, err := f.cfg.Pin.Capture()
	if err != nil {
		return fmt.Errorf("pin capture: %w", err)
	}
	if f.Mode() == block.ModeFreezeInput && f.haveCapture {
		capture = f.lastCapture
	} else {
		f.lastCapture = capture
		f.haveCapture = true
	}

	low := capture.InputVoltage < f.prop.SignalLowTolerance || capture.Status == pin.StatusShortToGround
	high := capture.InputVoltage > f.prop.SignalHighTolerance || capture.Status == pin.StatusShortToPower
	if _, err := f.ObserveFault(FreqKindThresholdLow, low, elapsed); err != nil {
		return err
	}
	if _, err := f.ObserveFault(FreqKindThresholdHigh, high, elapsed); err != nil {
		return err
	}

	faults := f.Faults()
	hard := faults.Active(FreqKindThresholdLow) || faults.Active(FreqKindThresholdHigh)

	switch {
	case !hard:
		f.process(capture, elapsed)
	case f.prop.Policy == block.ReactionParameterToInput:
		f.process(f.substitute(capture), elapsed)
	case f.prop.Policy == block.ReactionFreezeInput:
		// Hold the last published output until the fault clears.
	case f.prop.Policy == block.ReactionErrorToOutput:
		held := f.out
		held.Valid = false
		held.InputVoltage = capture.InputVoltage
		held.PinStatus = capture.Status
		f.publish(held)
	default:
		return fmt.Errorf("%w: %d", errUnknownPolicy, f.prop.Policy)
	}
	return nil
}

// process feeds one capture through timeout, averaging and conversion.
func (f *FreqIn) process(c pin.TimerCapture, elapsed time.Duration) {
	samples := c.Periods
	if len(samples) > pin.CaptureDepth {
		samples = samples[:pin.CaptureDepth]
	}
	if len(samples) == 0 {
		f.sinceLast += elapsed
		if f.sinceLast > f.par.Timeout {
			f.publish(FreqOutput{Frequency: 0, Valid: true, InputVoltage: c.InputVoltage, PinStatus: c.Status})
		} else {
			f.hold(c)
		}
		return
	}
	f.sinceLast = 0

	if f.prop.Capture != CapturePeriod {
		freq := uint64(c.Frequency) * 10
		if freq > math.MaxUint32 {
			freq = math.MaxUint32
		}
		f.publish(FreqOutput{Frequency: uint32(freq), Valid: true, InputVoltage: c.InputVoltage, PinStatus: c.Status})
		return
	}

	if f.par.Averaging == 0 {
		var sum uint64
		for _, p := range samples {
			sum += uint64(p)
		}
		f.publish(FreqOutput{Frequency: f.convert(sum, uint64(len(samples))), Valid: true, InputVoltage: c.InputVoltage, PinStatus: c.Status})
		return
	}

	published := false
	for _, p := range samples {
		f.accSum += uint64(p)
		f.accCount++
		if f.accCount >= f.par.Averaging {
			f.publish(FreqOutput{Frequency: f.convert(f.accSum, uint64(f.accCount)), Valid: true, InputVoltage: c.InputVoltage, PinStatus: c.Status})
			f.accSum, f.accCount = 0, 0
			published = true
		}
	}
	if !published {
		f.hold(c)
	}
}

// hold keeps the published value and refreshes the capture diagnostics.
func (f *FreqIn) hold(c pin.TimerCapture) {
	held := f.out
	held.InputVoltage = c.InputVoltage
	held.PinStatus = c.Status
	f.publish(held)
}

// substitute builds a capture carrying the configured default input in
// place of the live signal.
func (f *FreqIn) substitute(live pin.TimerCapture) pin.TimerCapture {
	return pin.TimerCapture{
		Periods:      []uint32{f.par.DefaultInput},
		Frequency:    f.par.DefaultInput,
		InputVoltage: live.InputVoltage,
		Status:       live.Status,
	}
}

// convert turns an accumulated period sum over n samples into deciHz,
// rounding to nearest:
//
//	f = 1e8 * ratioMul * n / (sum * pulsesPerRevolution * ratioDiv)
//
// A denominator too large for 64 bits means a frequency below the output
// resolution; convert returns 0 for it.
func (f *FreqIn) convert(sumUS, n uint64) uint32 {
	if sumUS == 0 || n == 0 {
		return 0
	}
	num := 100_000_000 * uint64(f.par.RatioMul) * n
	den := sumUS
	if den > math.MaxUint64/uint64(f.par.PulsesPerRevolution) {
		return 0
	}
	den *= uint64(f.par.PulsesPerRevolution)
	if den > math.MaxUint64/uint64(f.par.RatioDiv) {
		return 0
	}
	den *= uint64(f.par.RatioDiv)
	freq := (num + den/2) / den
	if freq > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(freq)
}

// Park drives the output to its defined fault state.
func (f *FreqIn) Park() {
	f.out.Valid = false
}

// Reset clears the runtime state back to post-Init values.
func (f *FreqIn) Reset() {
	f.out = FreqOutput{}
	f.lastCapture = pin.TimerCapture{}
	f.haveCapture = false
	f.accSum = 0
	f.accCount = 0
	f.sinceLast = 0
}

func (f *FreqIn) publish(out FreqOutput) {
	if f.Mode() == block.ModeFreezeOutput {
		return
	}
	f.out = out
}

// Output returns the last published output.
func (f *FreqIn) Output() (FreqOutput, error) {
	if err := f.Guard("get-output"); err != nil {
		return FreqOutput{}, err
	}
	return f.out, nil
}

// Frequency returns the latest published frequency in deciHz and whether
// it is valid.
func (f *FreqIn) Frequency() (uint32, bool, error) {
	if err := f.Guard("get-frequency"); err != nil {
		return 0, false, err
	}
	return f.out.Frequency, f.out.Valid, nil
}

// Parameter returns the live parameter snapshot.
func (f *FreqIn) Parameter() (FreqParameter, error) {
	if err := committed(f.Core, "get-parameter"); err != nil {
		return FreqParameter{}, err
	}
	return f.par, nil
}

// Property returns the live property snapshot.
func (f *FreqIn) Property() (FreqProperty, error) {
	if err := committed(f.Core, "get-property"); err != nil {
		return FreqProperty{}, err
	}
	return f.prop, nil
}

// ConfigParameter resolves and returns the configuration template's
// parameter defaults, not the live set.
func (f *FreqIn) ConfigParameter() (FreqParameter, error) {
	const op = "get-config-parameter"
	if err := f.Guard(op); err != nil {
		return FreqParameter{}, err
	}
	par, err := f.cfg.Parameter.resolve(f.cfg.Provider)
	if err != nil {
		return FreqParameter{}, opError(op, f.Name(), err, block.StatusInvalidConfig)
	}
	return par, nil
}

// ConfigProperty resolves and returns the configuration template's
// property defaults.
func (f *FreqIn) ConfigProperty() (FreqProperty, error) {
	const op = "get-config-property"
	if err := f.Guard(op); err != nil {
		return FreqProperty{}, err
	}
	prop, err := f.cfg.Property.resolve(f.cfg.Provider)
	if err != nil {
		return FreqProperty{}, opError(op, f.Name(), err, block.StatusInvalidConfig)
	}
	return prop, nil
}

// SetParameter validates and commits a replacement parameter set without
// resetting runtime state. A rejected set leaves the prior valid values in
// force and latches the parameter fault until a later set is accepted.
func (f *FreqIn) SetParameter(par FreqParameter) error {
	const op = "set-parameter"
	return f.Reconfigure(op, func() error {
		if err := f.commit(op, f.prop, par); err != nil {
			f.ForceFault(FreqKindParameter)
			return err
		}
		f.ReleaseFault(FreqKindParameter)
		return nil
	}, false)
}

// ReInit re-resolves the property template and commits it together with
// par, then fully resets runtime state.
func (f *FreqIn) ReInit(par FreqParameter) error {
	const op = "reinit"
	return f.Reconfigure(op, func() error {
		prop, err := f.cfg.Property.resolve(f.cfg.Provider)
		if err != nil {
			f.ForceFault(FreqKindParameter)
			return opError(op, f.Name(), err, block.StatusInvalidConfig)
		}
		if err := f.commit(op, prop, par); err != nil {
			f.ForceFault(FreqKindParameter)
			return err
		}
		return nil
	}, true)
}

// CheckFreqProperty validates a property set without touching any block.
func CheckFreqProperty(prop FreqProperty) error {
	return opError("check-property", "", validateFreqProperty(prop), block.StatusInvalidConfig)
}

// CheckFreqParameter validates a parameter set without touching any block.
func CheckFreqParameter(par FreqParameter) error {
	return opError("check-parameter", "", validateFreqParameter(par), block.StatusInvalidParameter)
}

func validateFreqProperty(prop FreqProperty) error {
	if !prop.Policy.Valid() {
		return fmt.Errorf("policy: %w: %d", errValueRange, prop.Policy)
	}
	if !prop.Capture.Valid() {
		return fmt.Errorf("captureMode: %w: %d", errValueRange, prop.Capture)
	}
	if prop.SignalLowTolerance > prop.SignalHighTolerance {
		return fmt.Errorf("signalTolerance: %w: low %d above high %d",
			errValueRange, prop.SignalLowTolerance, prop.SignalHighTolerance)
	}
	return nil
}

func validateFreqParameter(par FreqParameter) error {
	if par.PulsesPerRevolution < 1 {
		return fmt.Errorf("pulsesPerRevolution: %w: %d", errValueRange, par.PulsesPerRevolution)
	}
	if par.RatioMul < 1 {
		return fmt.Errorf("ratioMul: %w: %d", errValueRange, par.RatioMul)
	}
	if par.RatioDiv < 1 {
		return fmt.Errorf("ratioDiv: %w: %d", errValueRange, par.RatioDiv)
	}
	if par.Timeout < 0 {
		return fmt.Errorf("timeout: %w: %v", errValueRange, par.Timeout)
	}
	if par.Averaging > pin.CaptureDepth {
		return fmt.Errorf("averaging: %w: %d", errValueRange, par.Averaging)
	}
	return nil
}

// DefaultFreqConfig returns a frequency input template with the platform
// defaults: period capture, signal timeout 100 ms, 1 pulse/revolution,
// ratio 1/1, no averaging, default input 0. The voltage tolerances are
// wide open; the threshold checks then only react to the pin status.
func DefaultFreqConfig() *FreqConfig {
	return &FreqConfig{
		Property: FreqPropertyConfig{
			Policy:              block.ReactionErrorToOutput,
			Capture:             CapturePeriod,
			SignalLowTolerance:  confdb.Literal(0),
			SignalHighTolerance: confdb.Literal(math.MaxUint16),
		},
		Parameter: FreqParameterConfig{
			PulsesPerRevolution: confdb.Literal(1),
			RatioMul:            confdb.Literal(1),
			RatioDiv:            confdb.Literal(1),
			Timeout:             confdb.Literal(100),
			Averaging:           confdb.Literal(0),
			DefaultInput:        confdb.Literal(0),
		},
	}
}
