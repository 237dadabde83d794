package blocks

import (
	"errors"
	"fmt"
	"time"

	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/characteristic"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
	"github.com/ioblock/ioblock-go/pkg/pin"
)

// Fault kinds of the analog input blocks. The bit positions are part of the
// external mask contract and must not be reordered.
const (
	KindShortToPower          fault.Kind = 0
	KindShortToGroundOpenLoad fault.Kind = 1
	KindParameter             fault.Kind = 2
	KindInternal              fault.Kind = 3
	KindRangeLow              fault.Kind = 4
	KindRangeHigh             fault.Kind = 5
)

// Default debounce times: hard faults latch after 100 ms of persistence,
// range warnings after 1000 ms.
const (
	DefaultFaultDebounce   = 100 * time.Millisecond
	DefaultWarningDebounce = 1000 * time.Millisecond
)

var errInconsistentMapping = errors.New("mapped value contradicts direction")

// DefaultAnalogFaults returns the standard fault table of the analog
// blocks: four hard faults and two range warnings, all enabled.
func DefaultAnalogFaults() []fault.Config {
	return []fault.Config{
		{Kind: KindShortToPower, Name: "SHORT_TO_POWER", Class: fault.ClassFault, Enabled: true, Debounce: DefaultFaultDebounce},
		{Kind: KindShortToGroundOpenLoad, Name: "SHORT_TO_GROUND_OPEN_LOAD", Class: fault.ClassFault, Enabled: true, Debounce: DefaultFaultDebounce},
		{Kind: KindParameter, Name: "PARAMETER", Class: fault.ClassFault, Enabled: true},
		{Kind: KindInternal, Name: "INTERNAL", Class: fault.ClassFault, Enabled: true},
		{Kind: KindRangeLow, Name: "RANGE_LOW", Class: fault.ClassWarning, Enabled: true, Debounce: DefaultWarningDebounce},
		{Kind: KindRangeHigh, Name: "RANGE_HIGH", Class: fault.ClassWarning, Enabled: true, Debounce: DefaultWarningDebounce},
	}
}

// AnalogProperty is the resolved property snapshot of an analog input,
// fixed at Init and replaceable only through ReInit.
type AnalogProperty struct {
	// Policy selects the behavior while a hard input fault is latched.
	Policy block.ReactionPolicy

	// UpperLimit and LowerLimit are the hard-fault detection limits in
	// the pin's raw unit. Raw values above UpperLimit detect
	// short-to-power, below LowerLimit short-to-ground/open-load.
	UpperLimit int32
	LowerLimit int32

	// Out anchors the output axis of the characteristic.
	Out characteristic.Points

	// DeadZonePercent widens the neutral band, 0-100.
	DeadZonePercent uint8
}

// AnalogParameter is the hot-updatable parameter snapshot of an analog
// input.
type AnalogParameter struct {
	// In anchors the raw axis of the characteristic.
	In characteristic.Points

	// DefaultRaw is the substitute raw value used by the
	// parameter-to-input reaction policy. Must lie within the detection
	// limits.
	DefaultRaw int32
}

// AnalogPropertyConfig is the linked property template resolved at Init and
// ReInit.
type AnalogPropertyConfig struct {
	Policy          block.ReactionPolicy `yaml:"policy"`
	UpperLimit      confdb.Link          `yaml:"upperLimit"`
	LowerLimit      confdb.Link          `yaml:"lowerLimit"`
	OutPos          confdb.Link          `yaml:"outPos"`
	OutNeu          confdb.Link          `yaml:"outNeu"`
	OutNeg          confdb.Link          `yaml:"outNeg"`
	DeadZonePercent confdb.Link          `yaml:"deadZonePercent"`
}

func (pc AnalogPropertyConfig) resolve(p confdb.Provider) (AnalogProperty, error) {
	var (
		prop = AnalogProperty{Policy: pc.Policy}
		err  error
	)
	if prop.UpperLimit, err = resolveI32(p, "upperLimit", pc.UpperLimit); err != nil {
		return AnalogProperty{}, err
	}
	if prop.LowerLimit, err = resolveI32(p, "lowerLimit", pc.LowerLimit); err != nil {
		return AnalogProperty{}, err
	}
	if prop.Out.Pos, err = resolveI32(p, "outPos", pc.OutPos); err != nil {
		return AnalogProperty{}, err
	}
	if prop.Out.Neu, err = resolveI32(p, "outNeu", pc.OutNeu); err != nil {
		return AnalogProperty{}, err
	}
	if prop.Out.Neg, err = resolveI32(p, "outNeg", pc.OutNeg); err != nil {
		return AnalogProperty{}, err
	}
	if prop.DeadZonePercent, err = resolveU8(p, "deadZonePercent", pc.DeadZonePercent); err != nil {
		return AnalogProperty{}, err
	}
	return prop, nil
}

// AnalogParameterConfig is the linked parameter template resolved at Init;
// it also backs GetConfigParameter.
type AnalogParameterConfig struct {
	InPos      confdb.Link `yaml:"inPos"`
	InNeu      confdb.Link `yaml:"inNeu"`
	InNeg      confdb.Link `yaml:"inNeg"`
	DefaultRaw confdb.Link `yaml:"defaultRaw"`
}

func (pc AnalogParameterConfig) resolve(p confdb.Provider) (AnalogParameter, error) {
	var (
		par AnalogParameter
		err error
	)
	if par.In.Pos, err = resolveI32(p, "inPos", pc.InPos); err != nil {
		return AnalogParameter{}, err
	}
	if par.In.Neu, err = resolveI32(p, "inNeu", pc.InNeu); err != nil {
		return AnalogParameter{}, err
	}
	if par.In.Neg, err = resolveI32(p, "inNeg", pc.InNeg); err != nil {
		return AnalogParameter{}, err
	}
	if par.DefaultRaw, err = resolveI32(p, "defaultRaw", pc.DefaultRaw); err != nil {
		return AnalogParameter{}, err
	}
	return par, nil
}

// AnalogConfig is the creation template of an analog input block. It is
// owned by the integration layer for the block's lifetime; ReInit re-reads
// the property template from it.
type AnalogConfig struct {
	// Name identifies the instance; must be non-empty.
	Name string

	// InitialMode is entered on a successful Init.
	InitialMode block.Mode

	// Pin supplies the raw samples. Must be non-nil.
	Pin pin.AnalogInput

	// Provider resolves keyed links. May be nil when all links are
	// literals.
	Provider confdb.Provider

	// Logger receives diagnostic events. Nil disables logging.
	Logger log.Logger

	// Faults overrides the fault table; nil selects
	// DefaultAnalogFaults. All six analog kinds must be present.
	Faults []fault.Config

	// Property and Parameter are the linked templates resolved at Init.
	Property  AnalogPropertyConfig
	Parameter AnalogParameterConfig
}

// AnalogOutput is the published result of one analog block cycle.
type AnalogOutput struct {
	// Value is the mapped engineering-unit value.
	Value int32

	// Direction mirrors the sign of Value as an independent channel.
	Direction characteristic.Direction

	// Raw is the raw value the pipeline consumed this cycle.
	Raw int32

	// PinStatus is the electrical diagnosis of the consumed sample.
	PinStatus pin.Status

	// Valid reports whether Value may be trusted. The error-to-output
	// policy clears it while a hard fault is latched.
	Valid bool
}

// AnalogIn is an analog current or voltage input block: a calibrated
// characteristic mapping with debounced wiring-fault detection in parallel.
type AnalogIn struct {
	*block.Core

	cfg   *AnalogConfig
	prop  AnalogProperty
	par   AnalogParameter
	curve characteristic.Curve

	lastSample pin.AnalogSample
	haveSample bool
	out        AnalogOutput
}

var _ block.Payload = (*AnalogIn)(nil)

// NewCurrentInput creates a current input block in reg. The block is
// created but not initialized; call Init to start it.
func NewCurrentInput(reg *block.Registry, cfg *AnalogConfig) (*AnalogIn, error) {
	return newAnalog(reg, cfg, TypeCurrent)
}

// NewVoltageInput creates a voltage input block in reg.
func NewVoltageInput(reg *block.Registry, cfg *AnalogConfig) (*AnalogIn, error) {
	return newAnalog(reg, cfg, TypeVoltage)
}

// OpenCurrentInput creates and initializes a current input block. On an
// Init failure the created block is returned alongside the error so the
// caller can correct the configuration and retry Init.
func OpenCurrentInput(reg *block.Registry, cfg *AnalogConfig) (*AnalogIn, error) {
	a, err := NewCurrentInput(reg, cfg)
	if err != nil {
		return nil, err
	}
	return a, a.Init()
}

// OpenVoltageInput creates and initializes a voltage input block, with the
// same contract as OpenCurrentInput.
func OpenVoltageInput(reg *block.Registry, cfg *AnalogConfig) (*AnalogIn, error) {
	a, err := NewVoltageInput(reg, cfg)
	if err != nil {
		return nil, err
	}
	return a, a.Init()
}

func newAnalog(reg *block.Registry, cfg *AnalogConfig, typeName string) (*AnalogIn, error) {
	const op = "create"
	if cfg == nil || cfg.Pin == nil {
		return nil, &block.Error{Op: op, Status: block.StatusNullPointer}
	}
	faults := cfg.Faults
	if faults == nil {
		faults = DefaultAnalogFaults()
	}
	required := []fault.Kind{
		KindShortToPower, KindShortToGroundOpenLoad, KindParameter,
		KindInternal, KindRangeLow, KindRangeHigh,
	}
	if err := requireKinds(faults, required...); err != nil {
		return nil, &block.Error{Op: op, Block: cfg.Name, Status: block.StatusInvalidConfig, Err: err}
	}

	a := &AnalogIn{cfg: cfg}
	core, err := reg.Create(&block.Config{
		Name:          cfg.Name,
		Type:          typeName,
		InitialMode:   cfg.InitialMode,
		Provider:      cfg.Provider,
		Logger:        cfg.Logger,
		Faults:        faults,
		InternalFault: KindInternal,
	}, a)
	if err != nil {
		return nil, err
	}
	a.Core = core

	// Range warnings stay clear while their hard fault is latched.
	if err := core.Faults().Link(KindRangeLow, KindShortToGroundOpenLoad); err != nil {
		return nil, &block.Error{Op: op, Block: cfg.Name, Status: block.StatusInvalidConfig, Err: err}
	}
	if err := core.Faults().Link(KindRangeHigh, KindShortToPower); err != nil {
		return nil, &block.Error{Op: op, Block: cfg.Name, Status: block.StatusInvalidConfig, Err: err}
	}
	return a, nil
}

// Apply resolves and commits both templates. Part of the payload contract;
// invoked through Init.
func (a *AnalogIn) Apply(provider confdb.Provider) error {
	const op = "init"
	prop, err := a.cfg.Property.resolve(provider)
	if err != nil {
		return opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	par, err := a.cfg.Parameter.resolve(provider)
	if err != nil {
		return opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	return a.commit(op, prop, par)
}

// commit validates a property/parameter pair and installs it. All-or-
// nothing: on error the previous snapshots stay in force.
func (a *AnalogIn) commit(op string, prop AnalogProperty, par AnalogParameter) error {
	if err := validateAnalogProperty(prop); err != nil {
		return opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	if err := validateAnalogParameter(par); err != nil {
		return opError(op, a.Name(), err, block.StatusInvalidParameter)
	}
	curve := characteristic.Curve{In: par.In, Out: prop.Out, DeadZonePercent: prop.DeadZonePercent}
	if err := curve.Validate(); err != nil {
		return opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	if par.DefaultRaw < prop.LowerLimit || par.DefaultRaw > prop.UpperLimit {
		return opError(op, a.Name(),
			fmt.Errorf("defaultRaw: %w: %d outside limits [%d, %d]",
				errValueRange, par.DefaultRaw, prop.LowerLimit, prop.UpperLimit),
			block.StatusInvalidParameter)
	}

	a.prop = prop
	a.par = par
	a.curve = curve
	return nil
}

// Step runs one conditioning cycle: sample, fault checks, mapping, policy.
// Part of the payload contract; invoked through Run.
func (a *AnalogIn) Step(elapsed time.Duration) error {
	sample, err := a.cfg.Pin.Sample()
	if err != nil {
		return fmt.Errorf("pin sample: %w", err)
	}
	if a.Mode() == block.ModeFreezeInput && a.haveSample {
		sample = a.lastSample
	} else {
		a.lastSample = sample
		a.haveSample = true
	}

	raw := sample.Raw
	rawLow, rawHigh := a.par.In.Neg, a.par.In.Pos
	if rawLow > rawHigh {
		rawLow, rawHigh = rawHigh, rawLow
	}

	// Hard faults first; the range warnings are suppressed while their
	// hard fault is latched.
	if _, err := a.ObserveFault(KindShortToPower,
		raw > a.prop.UpperLimit || sample.Status == pin.StatusShortToPower, elapsed); err != nil {
		return err
	}
	if _, err := a.ObserveFault(KindShortToGroundOpenLoad,
		raw < a.prop.LowerLimit || sample.Status == pin.StatusShortToGround ||
			sample.Status == pin.StatusOpenLoad, elapsed); err != nil {
		return err
	}
	if _, err := a.ObserveFault(KindRangeLow, raw < rawLow, elapsed); err != nil {
		return err
	}
	if _, err := a.ObserveFault(KindRangeHigh, raw > rawHigh, elapsed); err != nil {
		return err
	}

	faults := a.Faults()
	hard := faults.Active(KindShortToPower) || faults.Active(KindShortToGroundOpenLoad)

	switch {
	case !hard:
		value, dir := a.curve.Map(raw)
		if !a.curve.Consistent(value, dir) {
			return fmt.Errorf("%w: %d as %s", errInconsistentMapping, value, dir)
		}
		a.publish(AnalogOutput{Value: value, Direction: dir, Raw: raw, PinStatus: sample.Status, Valid: true})
	case a.prop.Policy == block.ReactionParameterToInput:
		value, dir := a.curve.Map(a.par.DefaultRaw)
		a.publish(AnalogOutput{Value: value, Direction: dir, Raw: a.par.DefaultRaw, PinStatus: sample.Status, Valid: true})
	case a.prop.Policy == block.ReactionFreezeInput:
		// Hold the last published output until the fault clears.
	case a.prop.Policy == block.ReactionErrorToOutput:
		held := a.out
		held.Valid = false
		held.Raw = raw
		held.PinStatus = sample.Status
		a.publish(held)
	default:
		return fmt.Errorf("%w: %d", errUnknownPolicy, a.prop.Policy)
	}
	return nil
}

// Park drives the output to its defined fault state.
func (a *AnalogIn) Park() {
	a.out.Valid = false
}

// Reset clears the runtime state back to post-Init values.
func (a *AnalogIn) Reset() {
	a.out = AnalogOutput{}
	a.lastSample = pin.AnalogSample{}
	a.haveSample = false
}

func (a *AnalogIn) publish(out AnalogOutput) {
	if a.Mode() == block.ModeFreezeOutput {
		return
	}
	a.out = out
}

// Output returns the last published output.
func (a *AnalogIn) Output() (AnalogOutput, error) {
	if err := a.Guard("get-output"); err != nil {
		return AnalogOutput{}, err
	}
	return a.out, nil
}

// Parameter returns the live parameter snapshot.
func (a *AnalogIn) Parameter() (AnalogParameter, error) {
	if err := committed(a.Core, "get-parameter"); err != nil {
		return AnalogParameter{}, err
	}
	return a.par, nil
}

// Property returns the live property snapshot.
func (a *AnalogIn) Property() (AnalogProperty, error) {
	if err := committed(a.Core, "get-property"); err != nil {
		return AnalogProperty{}, err
	}
	return a.prop, nil
}

// ConfigParameter resolves and returns the configuration template's
// parameter defaults, not the live set.
func (a *AnalogIn) ConfigParameter() (AnalogParameter, error) {
	const op = "get-config-parameter"
	if err := a.Guard(op); err != nil {
		return AnalogParameter{}, err
	}
	par, err := a.cfg.Parameter.resolve(a.cfg.Provider)
	if err != nil {
		return AnalogParameter{}, opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	return par, nil
}

// ConfigProperty resolves and returns the configuration template's
// property defaults.
func (a *AnalogIn) ConfigProperty() (AnalogProperty, error) {
	const op = "get-config-property"
	if err := a.Guard(op); err != nil {
		return AnalogProperty{}, err
	}
	prop, err := a.cfg.Property.resolve(a.cfg.Provider)
	if err != nil {
		return AnalogProperty{}, opError(op, a.Name(), err, block.StatusInvalidConfig)
	}
	return prop, nil
}

// SetParameter validates and commits a replacement parameter set without
// resetting runtime state. A rejected set leaves the previous values in
// force and latches the parameter fault until a later set is accepted.
func (a *AnalogIn) SetParameter(par AnalogParameter) error {
	const op = "set-parameter"
	return a.Reconfigure(op, func() error {
		if err := a.commit(op, a.prop, par); err != nil {
			a.ForceFault(KindParameter)
			return err
		}
		a.ReleaseFault(KindParameter)
		return nil
	}, false)
}

// ReInit re-resolves the property template and commits it together with
// par, then fully resets runtime state (outputs, timers, latched faults).
// Changing the reaction policy is done by editing the configuration
// template and calling ReInit.
func (a *AnalogIn) ReInit(par AnalogParameter) error {
	const op = "reinit"
	return a.Reconfigure(op, func() error {
		prop, err := a.cfg.Property.resolve(a.cfg.Provider)
		if err != nil {
			a.ForceFault(KindParameter)
			return opError(op, a.Name(), err, block.StatusInvalidConfig)
		}
		if err := a.commit(op, prop, par); err != nil {
			a.ForceFault(KindParameter)
			return err
		}
		return nil
	}, true)
}

// CheckAnalogProperty validates a property set without touching any block.
func CheckAnalogProperty(prop AnalogProperty) error {
	return opError("check-property", "", validateAnalogProperty(prop), block.StatusInvalidConfig)
}

// CheckAnalogParameter validates a parameter set without touching any
// block.
func CheckAnalogParameter(par AnalogParameter) error {
	return opError("check-parameter", "", validateAnalogParameter(par), block.StatusInvalidParameter)
}

func validateAnalogProperty(prop AnalogProperty) error {
	if !prop.Policy.Valid() {
		return fmt.Errorf("policy: %w: %d", errValueRange, prop.Policy)
	}
	if prop.LowerLimit >= prop.UpperLimit {
		return fmt.Errorf("limits: %w: lower %d not below upper %d",
			errValueRange, prop.LowerLimit, prop.UpperLimit)
	}
	if prop.DeadZonePercent > 100 {
		return fmt.Errorf("deadZonePercent: %w: %d", characteristic.ErrInvalidDeadZone, prop.DeadZonePercent)
	}
	if !characteristic.Monotone(prop.Out) {
		return fmt.Errorf("%w: output NEU %d outside POS/NEG range",
			characteristic.ErrNonMonotonic, prop.Out.Neu)
	}
	return nil
}

func validateAnalogParameter(par AnalogParameter) error {
	if par.In.Pos == par.In.Neg {
		return fmt.Errorf("%w: input POS equals NEG (%d)", characteristic.ErrNonMonotonic, par.In.Pos)
	}
	if !characteristic.Monotone(par.In) {
		return fmt.Errorf("%w: input NEU %d outside POS/NEG range",
			characteristic.ErrNonMonotonic, par.In.Neu)
	}
	return nil
}

// DefaultCurrentConfig returns a current input template with the platform
// defaults: detection limits 21000/1000 uA, output -2800..2800, input
// characteristic 20000/12000/4000 uA, 1 % dead zone. Name and Pin are left
// to the caller.
func DefaultCurrentConfig() *AnalogConfig {
	return &AnalogConfig{
		Property: AnalogPropertyConfig{
			Policy:          block.ReactionErrorToOutput,
			UpperLimit:      confdb.Literal(21000),
			LowerLimit:      confdb.Literal(1000),
			OutPos:          confdb.Literal(2800),
			OutNeu:          confdb.Literal(0),
			OutNeg:          confdb.Literal(-2800),
			DeadZonePercent: confdb.Literal(1),
		},
		Parameter: AnalogParameterConfig{
			InPos:      confdb.Literal(20000),
			InNeu:      confdb.Literal(12000),
			InNeg:      confdb.Literal(4000),
			DefaultRaw: confdb.Literal(12000),
		},
	}
}

// DefaultVoltageConfig returns a voltage input template with the platform
// defaults: detection limits 4900/100 mV, output -1000..1000, input
// characteristic 4500/2500/500 mV, 1 % dead zone.
func DefaultVoltageConfig() *AnalogConfig {
	return &AnalogConfig{
		Property: AnalogPropertyConfig{
			Policy:          block.ReactionErrorToOutput,
			UpperLimit:      confdb.Literal(4900),
			LowerLimit:      confdb.Literal(100),
			OutPos:          confdb.Literal(1000),
			OutNeu:          confdb.Literal(0),
			OutNeg:          confdb.Literal(-1000),
			DeadZonePercent: confdb.Literal(1),
		},
		Parameter: AnalogParameterConfig{
			InPos:      confdb.Literal(4500),
			InNeu:      confdb.Literal(2500),
			InNeg:      confdb.Literal(500),
			DefaultRaw: confdb.Literal(2500),
		},
	}
}
