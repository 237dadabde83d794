package blocks

import (
	"fmt"
	"math"
	"time"

	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	"github.com/ioblock/ioblock-go/pkg/fault"
	"github.com/ioblock/ioblock-go/pkg/log"
)

// Fault kinds of the brake-light block. Bits 0-1 form the block error
// register, bits 2-3 the block warning register.
const (
	BrakeKindInternal             fault.Kind = 0
	BrakeKindConfiguration        fault.Kind = 1
	BrakeKindNotInitialized       fault.Kind = 2
	BrakeKindConfigurationWarning fault.Kind = 3
)

const (
	brakeErrorMask   uint16 = 1<<BrakeKindInternal | 1<<BrakeKindConfiguration
	brakeWarningMask uint16 = 1<<BrakeKindNotInitialized | 1<<BrakeKindConfigurationWarning
)

// Input sentinels and limits of the brake-light block.
const (
	// PedalUnknown marks the pedal deflection as undefined. Losing the
	// pedal signal is critical: the output freezes and forces ON.
	PedalUnknown uint16 = 0xFFFF

	// VelocityUnknown marks the velocity as undefined. The block
	// substitutes zero and suppresses the deceleration term.
	VelocityUnknown int16 = math.MinInt16

	// MaxPedal is the upper end of the valid deflection range in 0.1 %.
	MaxPedal int32 = 1000
)

// Bits of the input warning and input error registers.
const (
	// InputWarningPedal: the deflection was above MaxPedal and clamped.
	InputWarningPedal uint16 = 1 << 0

	// InputWarningVelocity: the velocity was undefined and substituted.
	InputWarningVelocity uint16 = 1 << 1

	// InputErrorPedal: the deflection was undefined.
	InputErrorPedal uint16 = 1 << 0
)

// DefaultBrakeFaults returns the standard fault table of the brake-light
// block. The kinds model registers, not debounced conditions; they latch
// immediately.
func DefaultBrakeFaults() []fault.Config {
	return []fault.Config{
		{Kind: BrakeKindInternal, Name: "INTERNAL", Class: fault.ClassFault, Enabled: true},
		{Kind: BrakeKindConfiguration, Name: "CONFIGURATION", Class: fault.ClassFault, Enabled: true},
		{Kind: BrakeKindNotInitialized, Name: "NOT_INITIALIZED", Class: fault.ClassWarning, Enabled: true},
		{Kind: BrakeKindConfigurationWarning, Name: "CONFIGURATION_WARNING", Class: fault.ClassWarning, Enabled: true},
	}
}

// BrakeProperty is the resolved property snapshot of a brake-light block.
type BrakeProperty struct {
	// FilterConstant is the time constant of the acceleration low-pass
	// filter in ms.
	FilterConstant int32

	// Delay is how long the deactivation conditions must hold
	// continuously before the light turns off.
	Delay time.Duration
}

// BrakeParameter is the hot-updatable parameter snapshot of a brake-light
// block. Thresholds are absolute values.
type BrakeParameter struct {
	// ActivationThreshold is the filtered deceleration in 0.01 m/s^2
	// that turns the light on.
	ActivationThreshold int32

	// DeactivationThreshold is the deceleration below which the light
	// may turn off.
	DeactivationThreshold int32

	// MinPedal is the deflection in 0.1 % at which the light turns on
	// regardless of deceleration.
	MinPedal int32
}

// BrakePropertyConfig is the linked property template of a brake-light
// block. FilterConstant and Delay are in milliseconds.
type BrakePropertyConfig struct {
	FilterConstant confdb.Link `yaml:"filterConstant"`
	Delay          confdb.Link `yaml:"delay"`
}

func (pc BrakePropertyConfig) resolve(p confdb.Provider) (BrakeProperty, error) {
	var (
		prop BrakeProperty
		err  error
	)
	if prop.FilterConstant, err = resolveI32(p, "filterConstant", pc.FilterConstant); err != nil {
		return BrakeProperty{}, err
	}
	if prop.Delay, err = resolveMillis(p, "delay", pc.Delay); err != nil {
		return BrakeProperty{}, err
	}
	return prop, nil
}

// BrakeParameterConfig is the linked parameter template of a brake-light
// block.
type BrakeParameterConfig struct {
	ActivationThreshold   confdb.Link `yaml:"activationThreshold"`
	DeactivationThreshold confdb.Link `yaml:"deactivationThreshold"`
	MinPedal              confdb.Link `yaml:"minPedal"`
}

func (pc BrakeParameterConfig) resolve(p confdb.Provider) (BrakeParameter, error) {
	var (
		par BrakeParameter
		err error
	)
	if par.ActivationThreshold, err = resolveI32(p, "activationThreshold", pc.ActivationThreshold); err != nil {
		return BrakeParameter{}, err
	}
	if par.DeactivationThreshold, err = resolveI32(p, "deactivationThreshold", pc.DeactivationThreshold); err != nil {
		return BrakeParameter{}, err
	}
	if par.MinPedal, err = resolveI32(p, "minPedal", pc.MinPedal); err != nil {
		return BrakeParameter{}, err
	}
	return par, nil
}

// BrakeConfig is the creation template of a brake-light block. The block
// has no pin; its inputs arrive through SetInput.
type BrakeConfig struct {
	// Name identifies the instance; must be non-empty.
	Name string

	// InitialMode is entered on a successful Init.
	InitialMode block.Mode

	// Provider resolves keyed links.
	Provider confdb.Provider

	// Logger receives diagnostic events.
	Logger log.Logger

	// Faults overrides the fault table; nil selects DefaultBrakeFaults.
	Faults []fault.Config

	Property  BrakePropertyConfig
	Parameter BrakeParameterConfig
}

// BrakeOutput is the published result of one brake-light cycle.
type BrakeOutput struct {
	// On is the brake-light decision.
	On bool

	// Acceleration is the filtered acceleration in 0.01 m/s^2, signed.
	Acceleration int32

	// InputWarnings and InputErrors report this cycle's input
	// conditioning, InputWarning*/InputError* bits.
	InputWarnings uint16
	InputErrors   uint16

	// BlockWarnings and BlockErrors mirror the latched warning and
	// error registers; bit positions match the BrakeKind* kinds.
	BlockWarnings uint16
	BlockErrors   uint16
}

// BrakeLight decides the brake-light state from pedal deflection and
// filtered deceleration, with asymmetric hysteresis: activation is
// immediate, deactivation requires the conditions to hold for the
// configured delay.
type BrakeLight struct {
	*block.Core

	cfg  *BrakeConfig
	prop BrakeProperty
	par  BrakeParameter

	pending   brakeInput
	last      brakeInput
	haveInput bool

	prevVel     int16
	havePrevVel bool
	filtFP      int64 // filtered acceleration, 0.01 m/s^2 scaled by 256
	delayAcc    time.Duration
	on          bool

	out BrakeOutput
}

type brakeInput struct {
	pedal    uint16
	velocity int16
	suppress bool
}

var _ block.Payload = (*BrakeLight)(nil)

// NewBrakeLight creates a brake-light block in reg. The block is created
// but not initialized; the not-initialized warning is latched until a
// successful Init.
func NewBrakeLight(reg *block.Registry, cfg *BrakeConfig) (*BrakeLight, error) {
	const op = "create"
	if cfg == nil {
		return nil, &block.Error{Op: op, Status: block.StatusNullPointer}
	}
	faults := cfg.Faults
	if faults == nil {
		faults = DefaultBrakeFaults()
	}
	required := []fault.Kind{
		BrakeKindInternal, BrakeKindConfiguration,
		BrakeKindNotInitialized, BrakeKindConfigurationWarning,
	}
	if err := requireKinds(faults, required...); err != nil {
		return nil, &block.Error{Op: op, Block: cfg.Name, Status: block.StatusInvalidConfig, Err: err}
	}

	b := &BrakeLight{cfg: cfg}
	core, err := reg.Create(&block.Config{
		Name:          cfg.Name,
		Type:          TypeBrakeLight,
		InitialMode:   cfg.InitialMode,
		Provider:      cfg.Provider,
		Logger:        cfg.Logger,
		Faults:        faults,
		InternalFault: BrakeKindInternal,
	}, b)
	if err != nil {
		return nil, err
	}
	b.Core = core
	core.ForceFault(BrakeKindNotInitialized)
	return b, nil
}

// OpenBrakeLight creates and initializes a brake-light block. On an Init
// failure the created block is returned alongside the error.
func OpenBrakeLight(reg *block.Registry, cfg *BrakeConfig) (*BrakeLight, error) {
	b, err := NewBrakeLight(reg, cfg)
	if err != nil {
		return nil, err
	}
	return b, b.Init()
}

// SetInput supplies the next cycle's signals: pedal deflection in 0.1 %
// (PedalUnknown when lost), velocity in 0.01 km/h (VelocityUnknown when
// lost) and the velocity-suppress flag. The stored inputs are cleared by
// Init and ReInit.
func (b *BrakeLight) SetInput(pedal uint16, velocity int16, suppress bool) error {
	if err := b.Guard("set-input"); err != nil {
		return err
	}
	b.pending = brakeInput{pedal: pedal, velocity: velocity, suppress: suppress}
	return nil
}

// Apply resolves and commits both templates. A failure latches the
// configuration error until a later Init succeeds.
func (b *BrakeLight) Apply(provider confdb.Provider) error {
	const op = "init"
	prop, err := b.cfg.Property.resolve(provider)
	if err != nil {
		b.ForceFault(BrakeKindConfiguration)
		return opError(op, b.Name(), err, block.StatusInvalidConfig)
	}
	par, err := b.cfg.Parameter.resolve(provider)
	if err != nil {
		b.ForceFault(BrakeKindConfiguration)
		return opError(op, b.Name(), err, block.StatusInvalidConfig)
	}
	if err := b.commit(op, prop, par); err != nil {
		b.ForceFault(BrakeKindConfiguration)
		return err
	}
	return nil
}

func (b *BrakeLight) commit(op string, prop BrakeProperty, par BrakeParameter) error {
	if err := validateBrakeProperty(prop); err != nil {
		return opError(op, b.Name(), err, block.StatusInvalidConfig)
	}
	if err := validateBrakeParameter(par); err != nil {
		return opError(op, b.Name(), err, block.StatusInvalidParameter)
	}
	b.prop = prop
	b.par = par
	return nil
}

// Step runs one decision cycle. Part of the payload contract.
func (b *BrakeLight) Step(elapsed time.Duration) error {
	in := b.pending
	if b.Mode() == block.ModeFreezeInput && b.haveInput {
		in = b.last
	} else {
		b.last = in
		b.haveInput = true
	}

	var warnings, inErrors uint16

	if in.pedal == PedalUnknown {
		// Critical signal loss: freeze the output, force the light on.
		inErrors |= InputErrorPedal
		if in.velocity == VelocityUnknown {
			warnings |= InputWarningVelocity
		}
		b.on = true
		b.delayAcc = 0
		b.havePrevVel = false

		held := b.out
		held.On = true
		held.InputWarnings = warnings
		held.InputErrors = inErrors
		held.BlockWarnings = b.Faults().ActiveMask() & brakeWarningMask
		held.BlockErrors = b.Faults().ActiveMask() & brakeErrorMask
		b.publish(held)
		return nil
	}

	pedal := int32(in.pedal)
	if pedal > MaxPedal {
		pedal = MaxPedal
		warnings |= InputWarningPedal
	}

	velocity := in.velocity
	suppress := in.suppress
	if velocity == VelocityUnknown {
		velocity = 0
		suppress = true
		warnings |= InputWarningVelocity
	}

	// First-order low-pass of the velocity derivative. Velocity is in
	// 0.01 km/h and dt in ms, so the derivative in 0.01 m/s^2 is
	// 2500*dv/(9*dt); the filter state carries 8 fraction bits.
	dt := elapsed.Milliseconds()
	if b.havePrevVel && dt > 0 {
		rawFP := (int64(velocity) - int64(b.prevVel)) * 2500 * 256 / (9 * dt)
		b.filtFP += (rawFP - b.filtFP) * dt / (int64(b.prop.FilterConstant) + dt)
	}
	b.prevVel = velocity
	b.havePrevVel = true

	accel := int32(b.filtFP / 256)
	decel := -accel
	if velocity < 0 {
		decel = accel
	}
	if decel < 0 {
		decel = 0
	}

	activate := pedal >= b.par.MinPedal || (!suppress && decel >= b.par.ActivationThreshold)
	release := pedal < b.par.MinPedal && (suppress || decel < b.par.DeactivationThreshold)

	switch {
	case activate:
		b.on = true
		b.delayAcc = 0
	case release:
		b.delayAcc += elapsed
		if b.delayAcc >= b.prop.Delay {
			b.on = false
		}
	default:
		// Between the thresholds: hold the state, pause the delay.
	}

	b.publish(BrakeOutput{
		On:            b.on,
		Acceleration:  accel,
		InputWarnings: warnings,
		InputErrors:   inErrors,
		BlockWarnings: b.Faults().ActiveMask() & brakeWarningMask,
		BlockErrors:   b.Faults().ActiveMask() & brakeErrorMask,
	})
	return nil
}

// Park drives the output to its defined fault state: light on.
func (b *BrakeLight) Park() {
	b.on = true
	b.out.On = true
}

// Reset clears the runtime state back to post-Init values.
func (b *BrakeLight) Reset() {
	b.pending = brakeInput{}
	b.last = brakeInput{}
	b.haveInput = false
	b.prevVel = 0
	b.havePrevVel = false
	b.filtFP = 0
	b.delayAcc = 0
	b.on = false
	b.out = BrakeOutput{}
}

func (b *BrakeLight) publish(out BrakeOutput) {
	if b.Mode() == block.ModeFreezeOutput {
		return
	}
	b.out = out
}

// Output returns the last published output.
func (b *BrakeLight) Output() (BrakeOutput, error) {
	if err := b.Guard("get-output"); err != nil {
		return BrakeOutput{}, err
	}
	return b.out, nil
}

// InputWarnings returns the input warning register of the last published
// cycle.
func (b *BrakeLight) InputWarnings() (uint16, error) {
	if err := b.Guard("get-input-warnings"); err != nil {
		return 0, err
	}
	return b.out.InputWarnings, nil
}

// InputErrors returns the input error register of the last published
// cycle.
func (b *BrakeLight) InputErrors() (uint16, error) {
	if err := b.Guard("get-input-errors"); err != nil {
		return 0, err
	}
	return b.out.InputErrors, nil
}

// BlockWarnings returns the live block warning register; bit positions
// match the BrakeKind* kinds. Readable in every lifecycle state.
func (b *BrakeLight) BlockWarnings() (uint16, error) {
	if err := b.Guard("get-block-warnings"); err != nil {
		return 0, err
	}
	return b.Faults().ActiveMask() & brakeWarningMask, nil
}

// BlockErrors returns the live block error register.
func (b *BrakeLight) BlockErrors() (uint16, error) {
	if err := b.Guard("get-block-errors"); err != nil {
		return 0, err
	}
	return b.Faults().ActiveMask() & brakeErrorMask, nil
}

// SetBlockWarnings injects the block warning register: set bits latch
// their kind, clear bits release it. Bits outside the warning register are
// ignored.
func (b *BrakeLight) SetBlockWarnings(mask uint16) error {
	if err := b.Guard("set-block-warnings"); err != nil {
		return err
	}
	b.inject(mask, BrakeKindNotInitialized, BrakeKindConfigurationWarning)
	return nil
}

// SetBlockErrors injects the block error register. Injecting the internal
// bit latches it in the register without locking the block.
func (b *BrakeLight) SetBlockErrors(mask uint16) error {
	if err := b.Guard("set-block-errors"); err != nil {
		return err
	}
	b.inject(mask, BrakeKindInternal, BrakeKindConfiguration)
	return nil
}

func (b *BrakeLight) inject(mask uint16, kinds ...fault.Kind) {
	for _, k := range kinds {
		if mask&(1<<k) != 0 {
			b.ForceFault(k)
		} else {
			b.ReleaseFault(k)
		}
	}
}

// Parameter returns the live parameter snapshot.
func (b *BrakeLight) Parameter() (BrakeParameter, error) {
	if err := committed(b.Core, "get-parameter"); err != nil {
		return BrakeParameter{}, err
	}
	return b.par, nil
}

// Property returns the live property snapshot.
func (b *BrakeLight) Property() (BrakeProperty, error) {
	if err := committed(b.Core, "get-property"); err != nil {
		return BrakeProperty{}, err
	}
	return b.prop, nil
}

// ConfigParameter resolves and returns the configuration template's
// parameter defaults, not the live set.
func (b *BrakeLight) ConfigParameter() (BrakeParameter, error) {
	const op = "get-config-parameter"
	if err := b.Guard(op); err != nil {
		return BrakeParameter{}, err
	}
	par, err := b.cfg.Parameter.resolve(b.cfg.Provider)
	if err != nil {
		return BrakeParameter{}, opError(op, b.Name(), err, block.StatusInvalidConfig)
	}
	return par, nil
}

// ConfigProperty resolves and returns the configuration template's
// property defaults.
func (b *BrakeLight) ConfigProperty() (BrakeProperty, error) {
	const op = "get-config-property"
	if err := b.Guard(op); err != nil {
		return BrakeProperty{}, err
	}
	prop, err := b.cfg.Property.resolve(b.cfg.Provider)
	if err != nil {
		return BrakeProperty{}, opError(op, b.Name(), err, block.StatusInvalidConfig)
	}
	return prop, nil
}

// SetParameter validates and commits a replacement parameter set without
// resetting runtime state. A rejected set leaves the previous values in
// force and latches the configuration warning until a later set is
// accepted.
func (b *BrakeLight) SetParameter(par BrakeParameter) error {
	const op = "set-parameter"
	return b.Reconfigure(op, func() error {
		if err := b.commit(op, b.prop, par); err != nil {
			b.ForceFault(BrakeKindConfigurationWarning)
			return err
		}
		b.ReleaseFault(BrakeKindConfigurationWarning)
		return nil
	}, false)
}

// ReInit re-resolves the property template and commits it together with
// par, then fully resets runtime state.
func (b *BrakeLight) ReInit(par BrakeParameter) error {
	const op = "reinit"
	return b.Reconfigure(op, func() error {
		prop, err := b.cfg.Property.resolve(b.cfg.Provider)
		if err != nil {
			b.ForceFault(BrakeKindConfigurationWarning)
			return opError(op, b.Name(), err, block.StatusInvalidConfig)
		}
		if err := b.commit(op, prop, par); err != nil {
			b.ForceFault(BrakeKindConfigurationWarning)
			return err
		}
		return nil
	}, true)
}

// CheckBrakeProperty validates a property set without touching any block.
func CheckBrakeProperty(prop BrakeProperty) error {
	return opError("check-property", "", validateBrakeProperty(prop), block.StatusInvalidConfig)
}

// CheckBrakeParameter validates a parameter set without touching any
// block.
func CheckBrakeParameter(par BrakeParameter) error {
	return opError("check-parameter", "", validateBrakeParameter(par), block.StatusInvalidParameter)
}

func validateBrakeProperty(prop BrakeProperty) error {
	if prop.FilterConstant < 0 {
		return fmt.Errorf("filterConstant: %w: %d", errValueRange, prop.FilterConstant)
	}
	if prop.Delay < 0 {
		return fmt.Errorf("delay: %w: %v", errValueRange, prop.Delay)
	}
	return nil
}

func validateBrakeParameter(par BrakeParameter) error {
	if par.ActivationThreshold < 0 {
		return fmt.Errorf("activationThreshold: %w: %d", errValueRange, par.ActivationThreshold)
	}
	if par.DeactivationThreshold < 0 {
		return fmt.Errorf("deactivationThreshold: %w: %d", errValueRange, par.DeactivationThreshold)
	}
	if par.MinPedal < 0 || par.MinPedal > MaxPedal {
		return fmt.Errorf("minPedal: %w: %d", errValueRange, par.MinPedal)
	}
	return nil
}

// DefaultBrakeConfig returns a brake-light template with the platform
// defaults: thresholds 100/100, minimum pedal 200, filter constant
// 2000 ms, deactivation delay 1000 ms. Name is left to the caller.
func DefaultBrakeConfig() *BrakeConfig {
	return &BrakeConfig{
		Property: BrakePropertyConfig{
			FilterConstant: confdb.Literal(2000),
			Delay:          confdb.Literal(1000),
		},
		Parameter: BrakeParameterConfig{
			ActivationThreshold:   confdb.Literal(100),
			DeactivationThreshold: confdb.Literal(100),
			MinPedal:              confdb.Literal(200),
		},
	}
}
