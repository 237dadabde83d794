package blocks

import (
	"testing"
	"time"

	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/confdb"
)

func testBrakeConfig(name string) *BrakeConfig {
	cfg := DefaultBrakeConfig()
	cfg.Name = name
	return cfg
}

func openBrake(t *testing.T, cfg *BrakeConfig) *BrakeLight {
	t.Helper()
	b, err := OpenBrakeLight(newStandardRegistry(t), cfg)
	if err != nil {
		t.Fatalf("OpenBrakeLight failed: %v", err)
	}
	return b
}

func brakeCycle(t *testing.T, b *BrakeLight, pedal uint16, velocity int16, suppress bool, elapsed time.Duration) {
	t.Helper()
	if err := b.SetInput(pedal, velocity, suppress); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	if err := b.Run(elapsed); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func brakeOut(t *testing.T, b *BrakeLight) BrakeOutput {
	t.Helper()
	out, err := b.Output()
	if err != nil {
		t.Fatalf("Output failed: %v", err)
	}
	return out
}

func TestBrakePedalActivation(t *testing.T) {
	b := openBrake(t, testBrakeConfig("pedal"))

	// 30.0 % deflection is above the 20.0 % minimum.
	brakeCycle(t, b, 300, 0, false, 10*time.Millisecond)
	out := brakeOut(t, b)
	if !out.On {
		t.Fatal("light off with the pedal pressed")
	}
	if out.InputWarnings != 0 || out.InputErrors != 0 || out.BlockWarnings != 0 || out.BlockErrors != 0 {
		t.Errorf("registers = %+v, want all clear", out)
	}

	// Below the minimum the light stays on through the 1000 ms delay.
	if err := b.SetInput(100, 0, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 99, 10*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 10 ms early")
	}
	runCycles(t, b, 1, 10*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakeDecelerationActivation(t *testing.T) {
	cfg := testBrakeConfig("decel")
	cfg.Property.FilterConstant = confdb.Literal(0)
	b := openBrake(t, cfg)

	brakeCycle(t, b, 0, 5000, false, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Fatal("light on before any deceleration")
	}

	// 2 km/h lost in 100 ms is 5.55 m/s^2; with no filtering the full
	// value arrives in one cycle.
	brakeCycle(t, b, 0, 4800, false, 100*time.Millisecond)
	out := brakeOut(t, b)
	if !out.On {
		t.Fatal("light off under heavy deceleration")
	}
	if out.Acceleration != -555 {
		t.Errorf("Acceleration = %d, want -555", out.Acceleration)
	}

	// Constant velocity releases after the full delay.
	if err := b.SetInput(0, 4800, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 9, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 100 ms early")
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakeFilterSmoothing(t *testing.T) {
	b := openBrake(t, testBrakeConfig("filter"))

	brakeCycle(t, b, 0, 5000, false, 100*time.Millisecond)
	if got := brakeOut(t, b).Acceleration; got != 0 {
		t.Fatalf("Acceleration = %d, want 0 before any delta", got)
	}

	// The 2000 ms filter lets 100/2100 of each step through.
	brakeCycle(t, b, 0, 4800, false, 100*time.Millisecond)
	out := brakeOut(t, b)
	if out.Acceleration != -26 {
		t.Errorf("Acceleration after one step = %d, want -26", out.Acceleration)
	}
	if out.On {
		t.Error("light on below the activation threshold")
	}

	brakeCycle(t, b, 0, 4600, false, 100*time.Millisecond)
	if got := brakeOut(t, b).Acceleration; got != -51 {
		t.Errorf("Acceleration after two steps = %d, want -51", got)
	}
}

func TestBrakeHysteresisBand(t *testing.T) {
	cfg := testBrakeConfig("hysteresis")
	cfg.Property.FilterConstant = confdb.Literal(0)
	cfg.Parameter.DeactivationThreshold = confdb.Literal(50)
	b := openBrake(t, cfg)

	brakeCycle(t, b, 0, 5000, false, 100*time.Millisecond)
	brakeCycle(t, b, 0, 4800, false, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light off under heavy deceleration")
	}

	// 0.25 km/h per cycle lands between the thresholds (decel 69,
	// band 50..100): the state holds and the delay must not run even
	// over 1500 ms.
	v := int16(4800)
	for i := 0; i < 15; i++ {
		v -= 25
		brakeCycle(t, b, 0, v, false, 100*time.Millisecond)
		if !brakeOut(t, b).On {
			t.Fatalf("cycle %d: light off inside the hysteresis band", i+1)
		}
	}

	// Constant velocity drops below the deactivation threshold; only now
	// does the delay start.
	if err := b.SetInput(0, v, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 9, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 100 ms early")
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakeSuppressFlag(t *testing.T) {
	cfg := testBrakeConfig("suppress")
	cfg.Property.FilterConstant = confdb.Literal(0)
	b := openBrake(t, cfg)

	// Suppressed deceleration must not switch the light on.
	brakeCycle(t, b, 0, 5000, true, 100*time.Millisecond)
	brakeCycle(t, b, 0, 4800, true, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Fatal("light on from suppressed deceleration")
	}

	// The pedal path is unaffected by the suppress flag.
	brakeCycle(t, b, 300, 4600, true, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light off with the pedal pressed")
	}

	// With suppression active, ongoing deceleration cannot hold the
	// light either: release runs on the pedal alone.
	v := int16(4600)
	for i := 0; i < 9; i++ {
		v -= 200
		brakeCycle(t, b, 100, v, true, 100*time.Millisecond)
		if !brakeOut(t, b).On {
			t.Fatalf("cycle %d: light released 100 ms early", i+1)
		}
	}
	v -= 200
	brakeCycle(t, b, 100, v, true, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakePedalLossFailSafe(t *testing.T) {
	b := openBrake(t, testBrakeConfig("pedal-loss"))

	brakeCycle(t, b, 0, 1000, false, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Fatal("light on before the failure")
	}

	// Losing the pedal forces the light on and freezes the output.
	brakeCycle(t, b, PedalUnknown, 1000, false, 100*time.Millisecond)
	out := brakeOut(t, b)
	if !out.On {
		t.Fatal("light off with the pedal signal lost")
	}
	if out.InputErrors != InputErrorPedal {
		t.Errorf("InputErrors = %#x, want %#x", out.InputErrors, InputErrorPedal)
	}
	if out.InputWarnings != 0 {
		t.Errorf("InputWarnings = %#x, want 0", out.InputWarnings)
	}
	if got, _ := b.InputErrors(); got != InputErrorPedal {
		t.Errorf("InputErrors() = %#x, want %#x", got, InputErrorPedal)
	}

	// A velocity loss during the pedal loss is still flagged.
	brakeCycle(t, b, PedalUnknown, VelocityUnknown, false, 100*time.Millisecond)
	if got := brakeOut(t, b).InputWarnings; got != InputWarningVelocity {
		t.Errorf("InputWarnings = %#x, want %#x", got, InputWarningVelocity)
	}

	// Recovery with a velocity jump: the derivative re-seeds instead of
	// spiking, and the light stays on until the release delay drains.
	brakeCycle(t, b, 0, 5000, false, 100*time.Millisecond)
	out = brakeOut(t, b)
	if out.InputErrors != 0 {
		t.Errorf("InputErrors after recovery = %#x, want 0", out.InputErrors)
	}
	if out.Acceleration != 0 {
		t.Errorf("Acceleration after recovery = %d, want 0", out.Acceleration)
	}
	if !out.On {
		t.Fatal("light released immediately on recovery")
	}

	if err := b.SetInput(0, 5000, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 8, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 100 ms early")
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakeVelocityLossSubstitution(t *testing.T) {
	cfg := testBrakeConfig("velocity-loss")
	cfg.Property.FilterConstant = confdb.Literal(0)
	b := openBrake(t, cfg)

	brakeCycle(t, b, 0, 5000, false, 100*time.Millisecond)
	brakeCycle(t, b, 0, 4800, false, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light off under heavy deceleration")
	}

	// A lost velocity substitutes zero and suppresses the acceleration
	// path, so the release delay starts despite the braking before it.
	brakeCycle(t, b, 0, VelocityUnknown, false, 100*time.Millisecond)
	out := brakeOut(t, b)
	if out.InputWarnings != InputWarningVelocity {
		t.Errorf("InputWarnings = %#x, want %#x", out.InputWarnings, InputWarningVelocity)
	}
	if !out.On {
		t.Fatal("light released immediately on velocity loss")
	}

	if err := b.SetInput(0, VelocityUnknown, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 8, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 100 ms early")
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the release delay")
	}
}

func TestBrakePedalClampWarning(t *testing.T) {
	b := openBrake(t, testBrakeConfig("pedal-clamp"))

	// 150.0 % clamps to full deflection and flags the input.
	brakeCycle(t, b, 1500, 0, false, 10*time.Millisecond)
	out := brakeOut(t, b)
	if !out.On {
		t.Error("light off with the pedal clamped to full deflection")
	}
	if out.InputWarnings != InputWarningPedal {
		t.Errorf("InputWarnings = %#x, want %#x", out.InputWarnings, InputWarningPedal)
	}
}

func TestBrakeBlockRegisters(t *testing.T) {
	cfg := testBrakeConfig("registers")
	b, err := NewBrakeLight(newStandardRegistry(t), cfg)
	if err != nil {
		t.Fatalf("NewBrakeLight failed: %v", err)
	}

	// A created block advertises that it has not been initialized.
	if got, _ := b.BlockWarnings(); got != 1<<BrakeKindNotInitialized {
		t.Errorf("BlockWarnings = %#x, want %#x", got, 1<<BrakeKindNotInitialized)
	}
	if got, _ := b.BlockErrors(); got != 0 {
		t.Errorf("BlockErrors = %#x, want 0", got)
	}

	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if got, _ := b.BlockWarnings(); got != 0 {
		t.Errorf("BlockWarnings after Init = %#x, want 0", got)
	}

	// Injected register bits latch their kind and surface in the output.
	if err := b.SetBlockErrors(1 << BrakeKindConfiguration); err != nil {
		t.Fatalf("SetBlockErrors failed: %v", err)
	}
	if got, _ := b.BlockErrors(); got != 1<<BrakeKindConfiguration {
		t.Errorf("BlockErrors = %#x, want %#x", got, 1<<BrakeKindConfiguration)
	}
	brakeCycle(t, b, 0, 0, false, 10*time.Millisecond)
	if got := brakeOut(t, b).BlockErrors; got != 1<<BrakeKindConfiguration {
		t.Errorf("published BlockErrors = %#x, want %#x", got, 1<<BrakeKindConfiguration)
	}

	// Even the internal bit only latches the register; it does not lock.
	if err := b.SetBlockErrors(1 << BrakeKindInternal); err != nil {
		t.Fatalf("SetBlockErrors failed: %v", err)
	}
	if got, _ := b.BlockErrors(); got != 1<<BrakeKindInternal {
		t.Errorf("BlockErrors = %#x, want %#x", got, 1<<BrakeKindInternal)
	}
	if got := b.State(); got != block.StateRunning {
		t.Errorf("State = %s, want RUNNING", got)
	}

	if err := b.SetBlockErrors(0); err != nil {
		t.Fatalf("SetBlockErrors failed: %v", err)
	}
	if got, _ := b.BlockErrors(); got != 0 {
		t.Errorf("BlockErrors after clear = %#x, want 0", got)
	}

	if err := b.SetBlockWarnings(1 << BrakeKindConfigurationWarning); err != nil {
		t.Fatalf("SetBlockWarnings failed: %v", err)
	}
	if got, _ := b.BlockWarnings(); got != 1<<BrakeKindConfigurationWarning {
		t.Errorf("BlockWarnings = %#x, want %#x", got, 1<<BrakeKindConfigurationWarning)
	}
}

func TestBrakeInitFailureLatchesConfiguration(t *testing.T) {
	cfg := testBrakeConfig("bad-delay")
	cfg.Property.Delay = confdb.Literal(-5)

	b, err := OpenBrakeLight(newStandardRegistry(t), cfg)
	if !block.IsStatus(err, block.StatusInvalidConfig) {
		t.Fatalf("Open = %v, want INVALID_CONFIG", err)
	}
	if got := b.State(); got != block.StateNotInitialized {
		t.Errorf("State = %s, want NOT_INITIALIZED", got)
	}
	if got, _ := b.BlockErrors(); got != 1<<BrakeKindConfiguration {
		t.Errorf("BlockErrors = %#x, want %#x", got, 1<<BrakeKindConfiguration)
	}
	if got, _ := b.BlockWarnings(); got != 1<<BrakeKindNotInitialized {
		t.Errorf("BlockWarnings = %#x, want %#x", got, 1<<BrakeKindNotInitialized)
	}

	// A corrected template initializes cleanly.
	cfg.Property.Delay = confdb.Literal(1000)
	if err := b.Init(); err != nil {
		t.Fatalf("Init after fix = %v, want nil", err)
	}
	if got, _ := b.BlockErrors(); got != 0 {
		t.Errorf("BlockErrors after Init = %#x, want 0", got)
	}
	if got, _ := b.BlockWarnings(); got != 0 {
		t.Errorf("BlockWarnings after Init = %#x, want 0", got)
	}
}

func TestBrakeSetParameterAndReInit(t *testing.T) {
	b := openBrake(t, testBrakeConfig("reconfig"))

	bad := BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: 100, MinPedal: 2000}
	if err := b.SetParameter(bad); !block.IsStatus(err, block.StatusInvalidParameter) {
		t.Fatalf("SetParameter(minPedal 2000) = %v, want INVALID_PARAMETER", err)
	}
	if got, _ := b.BlockWarnings(); got != 1<<BrakeKindConfigurationWarning {
		t.Errorf("BlockWarnings = %#x, want %#x", got, 1<<BrakeKindConfigurationWarning)
	}
	want := BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: 100, MinPedal: 200}
	if got, _ := b.Parameter(); got != want {
		t.Errorf("Parameter after rejected set = %+v, want %+v", got, want)
	}

	good := BrakeParameter{ActivationThreshold: 150, DeactivationThreshold: 80, MinPedal: 250}
	if err := b.SetParameter(good); err != nil {
		t.Fatalf("SetParameter = %v, want nil", err)
	}
	if got, _ := b.BlockWarnings(); got != 0 {
		t.Errorf("BlockWarnings after accepted set = %#x, want 0", got)
	}
	if got, _ := b.Parameter(); got != good {
		t.Errorf("Parameter = %+v, want %+v", got, good)
	}

	// ReInit clears the light latch and the published output.
	brakeCycle(t, b, 300, 0, false, 10*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light off with the pedal pressed")
	}
	if err := b.ReInit(good); err != nil {
		t.Fatalf("ReInit = %v, want nil", err)
	}
	if out := brakeOut(t, b); out != (BrakeOutput{}) {
		t.Errorf("output after ReInit = %+v, want zero", out)
	}
	brakeCycle(t, b, 0, 0, false, 10*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light on after ReInit with the pedal released")
	}

	if err := b.ReInit(bad); !block.IsStatus(err, block.StatusInvalidParameter) {
		t.Fatalf("ReInit(minPedal 2000) = %v, want INVALID_PARAMETER", err)
	}
	if got, _ := b.Parameter(); got != good {
		t.Errorf("Parameter after rejected ReInit = %+v, want %+v", got, good)
	}
	if got, _ := b.BlockWarnings(); got != 1<<BrakeKindConfigurationWarning {
		t.Errorf("BlockWarnings = %#x, want %#x", got, 1<<BrakeKindConfigurationWarning)
	}
}

func TestBrakeFreezeModes(t *testing.T) {
	b := openBrake(t, testBrakeConfig("modes"))

	brakeCycle(t, b, 300, 0, false, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light off with the pedal pressed")
	}

	// Frozen input keeps acting on the pressed pedal.
	if err := b.SetMode(block.ModeFreezeInput); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := b.SetInput(0, 0, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 15, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Error("light released while the input is frozen on a pressed pedal")
	}

	// Releasing the mode lets the stored release input through.
	if err := b.SetMode(block.ModeRelease); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	runCycles(t, b, 9, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Fatal("light released 100 ms early")
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Fatal("light still on after the release delay")
	}

	// Frozen output publishes nothing while the decision keeps running.
	brakeCycle(t, b, 300, 0, false, 100*time.Millisecond)
	if err := b.SetMode(block.ModeFreezeOutput); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	if err := b.SetInput(0, 0, false); err != nil {
		t.Fatalf("SetInput failed: %v", err)
	}
	runCycles(t, b, 10, 100*time.Millisecond)
	if !brakeOut(t, b).On {
		t.Error("frozen output changed")
	}
	if err := b.SetMode(block.ModeRelease); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	runCycles(t, b, 1, 100*time.Millisecond)
	if brakeOut(t, b).On {
		t.Error("light still on after the output thawed")
	}
}

func TestCheckBrakeValidators(t *testing.T) {
	goodProp := BrakeProperty{FilterConstant: 2000, Delay: time.Second}
	if err := CheckBrakeProperty(goodProp); err != nil {
		t.Errorf("CheckBrakeProperty(good) = %v, want nil", err)
	}
	if err := CheckBrakeProperty(BrakeProperty{FilterConstant: -1, Delay: time.Second}); !block.IsStatus(err, block.StatusInvalidConfig) {
		t.Errorf("negative filter constant = %v, want INVALID_CONFIG", err)
	}
	if err := CheckBrakeProperty(BrakeProperty{FilterConstant: 0, Delay: -time.Millisecond}); !block.IsStatus(err, block.StatusInvalidConfig) {
		t.Errorf("negative delay = %v, want INVALID_CONFIG", err)
	}

	goodPar := BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: 100, MinPedal: 1000}
	if err := CheckBrakeParameter(goodPar); err != nil {
		t.Errorf("CheckBrakeParameter(good) = %v, want nil", err)
	}
	cases := []struct {
		name string
		par  BrakeParameter
	}{
		{"negative activation", BrakeParameter{ActivationThreshold: -1, DeactivationThreshold: 100, MinPedal: 200}},
		{"negative deactivation", BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: -1, MinPedal: 200}},
		{"negative pedal minimum", BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: 100, MinPedal: -1}},
		{"pedal minimum beyond full", BrakeParameter{ActivationThreshold: 100, DeactivationThreshold: 100, MinPedal: 1001}},
	}
	for _, tc := range cases {
		if err := CheckBrakeParameter(tc.par); !block.IsStatus(err, block.StatusInvalidParameter) {
			t.Errorf("%s = %v, want INVALID_PARAMETER", tc.name, err)
		}
	}
}
