// Package interactive provides the readline command shell of the block
// simulator.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/blocks"
	"github.com/ioblock/ioblock-go/pkg/persistence"
	"github.com/ioblock/ioblock-go/pkg/pin"
	"github.com/ioblock/ioblock-go/pkg/version"
)

// Block is one simulated block instance driven by the shell. Exactly one of
// Analog, Freq and Brake is set; the matching manual pin rides along.
type Block struct {
	Name string
	Type string

	Analog *blocks.AnalogIn
	Freq   *blocks.FreqIn
	Brake  *blocks.BrakeLight

	AnalogPin *pin.ManualAnalog
	TimerPin  *pin.ManualTimer

	// Pedal, Velocity and Suppress are the brake-light inputs applied
	// before every cycle.
	Pedal    uint16
	Velocity int16
	Suppress bool
}

// Core returns the lifecycle core of the wrapped variant.
func (b *Block) Core() *block.Core {
	switch {
	case b.Analog != nil:
		return b.Analog.Core
	case b.Freq != nil:
		return b.Freq.Core
	default:
		return b.Brake.Core
	}
}

// step advances the block by one cycle. Brake-light blocks consume their
// retained inputs first.
func (b *Block) step(elapsed time.Duration) error {
	if b.Brake != nil {
		if err := b.Brake.SetInput(b.Pedal, b.Velocity, b.Suppress); err != nil {
			return err
		}
		return b.Brake.Run(elapsed)
	}
	return b.Core().Run(elapsed)
}

// Sim handles interactive mode for ioblock-sim. Blocks are single-owner;
// every access, including the free-run ticker, goes through mu.
type Sim struct {
	registry *block.Registry
	blocks   []*Block
	store    *persistence.Store
	cycle    time.Duration
	rl       *readline.Instance

	mu        sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
	running   bool
}

// New creates a new interactive simulator shell.
func New(reg *block.Registry, simBlocks []*Block, store *persistence.Store, cycle time.Duration) (*Sim, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ioblock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Sim{
		registry: reg,
		blocks:   simBlocks,
		store:    store,
		cycle:    cycle,
		rl:       rl,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Sim) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Sim) Stderr() io.Writer {
	return s.rl.Stderr()
}

// StartFreeRun starts stepping all running blocks at the cycle period.
func (s *Sim) StartFreeRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

// StopFreeRun stops the free-run ticker.
func (s *Sim) StopFreeRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sim) startLocked() {
	if s.running {
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.running = true
	go s.freeRun(s.runCtx)
	fmt.Fprintf(s.rl.Stdout(), "Free-run started (%s cycle)\n", s.cycle)
}

func (s *Sim) stopLocked() {
	if !s.running {
		return
	}
	s.runCancel()
	s.running = false
	fmt.Fprintln(s.rl.Stdout(), "Free-run stopped")
}

func (s *Sim) freeRun(ctx context.Context) {
	ticker := time.NewTicker(s.cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.stepAll(s.cycle, false)
			s.mu.Unlock()
		}
	}
}

// stepAll advances every running block by elapsed. A block that fails its
// cycle locks itself and is skipped from then on.
func (s *Sim) stepAll(elapsed time.Duration, report bool) {
	for _, b := range s.blocks {
		if b.Core().State() != block.StateRunning {
			continue
		}
		if err := b.step(elapsed); err != nil {
			if !report && block.IsStatus(err, block.StatusNoAction) {
				continue
			}
			fmt.Fprintf(s.rl.Stdout(), "%s: %v\n", b.Name, err)
		}
	}
}

// Run starts the interactive command loop.
func (s *Sim) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	defer s.StopFreeRun()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		s.mu.Lock()
		quit := s.dispatch(cmd, args, cancel)
		s.mu.Unlock()
		if quit {
			return
		}
	}
}

// dispatch runs one command under the simulator lock. It reports whether
// the shell should exit.
func (s *Sim) dispatch(cmd string, args []string, cancel context.CancelFunc) bool {
	switch cmd {
	case "help", "?":
		s.printHelp()

	case "list", "ls", "l":
		s.cmdList()

	case "out", "o":
		s.cmdOut(args)

	case "faults", "f":
		s.cmdFaults(args)

	case "par":
		s.cmdPar(args)

	case "prop":
		s.cmdProp(args)

	case "raw":
		s.cmdRaw(args)

	case "pin":
		s.cmdPin(args)

	case "pulse":
		s.cmdPulse(args)

	case "hz":
		s.cmdHz(args)

	case "level":
		s.cmdLevel(args)

	case "brake":
		s.cmdBrake(args)

	case "fail":
		s.cmdFail(args)

	case "step", "s":
		s.cmdStep(args)

	case "start":
		s.startLocked()

	case "stop":
		s.stopLocked()

	case "mode":
		s.cmdMode(args)

	case "init":
		s.cmdInit(args)

	case "set":
		s.cmdSet(args)

	case "reinit":
		s.cmdReinit(args)

	case "save":
		s.cmdSave(args)

	case "load":
		s.cmdLoad(args)

	case "snapshots", "snaps":
		s.cmdSnapshots()

	case "version", "v":
		s.cmdVersion()

	case "quit", "exit", "q":
		fmt.Fprintln(s.rl.Stdout(), "Exiting...")
		cancel()
		return true

	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Sim) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
I/O Block Simulator Commands:
  Inspection:
    list                    - List blocks with state and mode
    out [block]             - Show published outputs
    faults <block> [clear]  - Show fault table (clear resets edge flags)
    par <block>             - Show the live parameter set
    prop <block>            - Show the live property set

  Drive:
    raw <block> <value>       - Set the analog raw input
    pin <block> <status>      - Set pin diagnosis: ok, short-to-power,
                                short-to-ground, open-load
    pulse <block> <us>...     - Queue timer period samples (microseconds)
    hz <block> <value>        - Set the hardware frequency (pulse modes)
    level <block> <mv>        - Set the timer comparator voltage
    brake <block> <pedal> <velocity> [suppress]
                              - Set brake-light inputs (keyword 'unknown'
                                marks a lost signal)
    fail <block> [clear]      - Make the pin fail hard (locks the block)

  Control:
    step [n]                - Run n cycles (default 1)
    start / stop            - Free-run at the cycle period
    mode <block> <mode>     - release, freeze-input, freeze-output, inactive
    init <block>            - Initialize a created block

  Reconfiguration:
    set <block> <field>=<value>...    - Hot parameter update
    reinit <block> [field=value]...   - Full re-initialization

  Snapshots:
    save <block>            - Persist the live parameter set
    load <block>            - Restore parameters from the store (reinit)
    snapshots               - List stored snapshots

  General:
    version                 - Library version and type revisions
    help                    - Show this help
    quit                    - Exit`)
}

// find returns the named block, printing a message when it is unknown.
func (s *Sim) find(name string) *Block {
	for _, b := range s.blocks {
		if b.Name == name {
			return b
		}
	}
	fmt.Fprintf(s.rl.Stdout(), "Unknown block: %s\n", name)
	return nil
}

func (s *Sim) cmdList() {
	w := s.rl.Stdout()
	fmt.Fprintf(w, "%-18s %-18s %-16s %-14s %s\n", "NAME", "TYPE", "STATE", "MODE", "ID")
	for _, b := range s.blocks {
		c := b.Core()
		fmt.Fprintf(w, "%-18s %-18s %-16s %-14s %s\n",
			b.Name, b.Type, c.State(), c.Mode(), c.ID())
	}
	fmt.Fprintf(w, "%d/%d registry slots used\n", s.registry.Len(), s.registry.Capacity())
}

func (s *Sim) cmdOut(args []string) {
	if len(args) > 0 {
		if b := s.find(args[0]); b != nil {
			s.printOut(b)
		}
		return
	}
	for _, b := range s.blocks {
		s.printOut(b)
	}
}

func (s *Sim) printOut(b *Block) {
	w := s.rl.Stdout()
	switch {
	case b.Analog != nil:
		out, err := b.Analog.Output()
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", b.Name, err)
			return
		}
		fmt.Fprintf(w, "%s: value=%d direction=%s raw=%d pin=%s valid=%t\n",
			b.Name, out.Value, out.Direction, out.Raw, out.PinStatus, out.Valid)

	case b.Freq != nil:
		out, err := b.Freq.Output()
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", b.Name, err)
			return
		}
		fmt.Fprintf(w, "%s: frequency=%d deciHz input=%dmV pin=%s valid=%t\n",
			b.Name, out.Frequency, out.InputVoltage, out.PinStatus, out.Valid)

	default:
		out, err := b.Brake.Output()
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", b.Name, err)
			return
		}
		fmt.Fprintf(w, "%s: on=%t acceleration=%d inputWarn=%#04x inputErr=%#04x blockWarn=%#04x blockErr=%#04x\n",
			b.Name, out.On, out.Acceleration,
			out.InputWarnings, out.InputErrors, out.BlockWarnings, out.BlockErrors)
	}
}

func (s *Sim) cmdFaults(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: faults <block> [clear]")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	faults := b.Core().Faults()
	w := s.rl.Stdout()

	if len(args) > 1 && args[1] == "clear" {
		faults.ActivatedMask(true)
		faults.DeactivatedMask(true)
		fmt.Fprintln(w, "Edge flags cleared")
		return
	}

	fmt.Fprintf(w, "%s: active mask %#04x\n", b.Name, faults.ActiveMask())
	for _, k := range faults.Kinds() {
		cfg, _ := faults.Config(k)
		line := fmt.Sprintf("  [%d] %-28s %-8s", k, cfg.Name, cfg.Class)
		if !cfg.Enabled {
			line += " disabled"
		}
		if faults.Active(k) {
			line += " ACTIVE"
		}
		if faults.Activated(k, false) {
			line += " +edge"
		}
		if faults.Deactivated(k, false) {
			line += " -edge"
		}
		fmt.Fprintln(w, line)
	}
}

func (s *Sim) cmdPar(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: par <block>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	w := s.rl.Stdout()
	switch {
	case b.Analog != nil:
		par, err := b.Analog.Parameter()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: inPos=%d inNeu=%d inNeg=%d defaultRaw=%d\n",
			b.Name, par.In.Pos, par.In.Neu, par.In.Neg, par.DefaultRaw)

	case b.Freq != nil:
		par, err := b.Freq.Parameter()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: pulsesPerRevolution=%d ratio=%d/%d timeout=%s averaging=%d defaultInput=%d\n",
			b.Name, par.PulsesPerRevolution, par.RatioMul, par.RatioDiv,
			par.Timeout, par.Averaging, par.DefaultInput)

	default:
		par, err := b.Brake.Parameter()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: activationThreshold=%d deactivationThreshold=%d minPedal=%d\n",
			b.Name, par.ActivationThreshold, par.DeactivationThreshold, par.MinPedal)
	}
}

func (s *Sim) cmdProp(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: prop <block>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	w := s.rl.Stdout()
	switch {
	case b.Analog != nil:
		prop, err := b.Analog.Property()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: policy=%s limits=%d/%d out=%d/%d/%d deadZone=%d%%\n",
			b.Name, prop.Policy, prop.UpperLimit, prop.LowerLimit,
			prop.Out.Pos, prop.Out.Neu, prop.Out.Neg, prop.DeadZonePercent)

	case b.Freq != nil:
		prop, err := b.Freq.Property()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: policy=%s capture=%s tolerance=%d..%dmV\n",
			b.Name, prop.Policy, prop.Capture,
			prop.SignalLowTolerance, prop.SignalHighTolerance)

	default:
		prop, err := b.Brake.Property()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(w, "%s: filterConstant=%d delay=%s\n",
			b.Name, prop.FilterConstant, prop.Delay)
	}
}

func (s *Sim) cmdRaw(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: raw <block> <value>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if b.AnalogPin == nil {
		fmt.Fprintf(s.rl.Stdout(), "%s has no analog pin\n", b.Name)
		return
	}
	v, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid value: %v\n", err)
		return
	}
	b.AnalogPin.Set(int32(v))
}

func (s *Sim) cmdPin(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: pin <block> <status>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	status, err := ParsePinStatus(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	switch {
	case b.AnalogPin != nil:
		b.AnalogPin.SetStatus(status)
	case b.TimerPin != nil:
		b.TimerPin.SetStatus(status)
	default:
		fmt.Fprintf(s.rl.Stdout(), "%s has no pin\n", b.Name)
	}
}

func (s *Sim) cmdPulse(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: pulse <block> <us>...")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if b.TimerPin == nil {
		fmt.Fprintf(s.rl.Stdout(), "%s has no timer pin\n", b.Name)
		return
	}
	periods := make([]uint32, 0, len(args)-1)
	for _, a := range args[1:] {
		v, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid period %q: %v\n", a, err)
			return
		}
		periods = append(periods, uint32(v))
	}
	b.TimerPin.Push(periods...)
	fmt.Fprintf(s.rl.Stdout(), "Queued %d period(s)\n", len(periods))
}

func (s *Sim) cmdHz(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: hz <block> <value>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if b.TimerPin == nil {
		fmt.Fprintf(s.rl.Stdout(), "%s has no timer pin\n", b.Name)
		return
	}
	v, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid value: %v\n", err)
		return
	}
	b.TimerPin.SetFrequency(uint32(v))
}

func (s *Sim) cmdLevel(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: level <block> <mv>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if b.TimerPin == nil {
		fmt.Fprintf(s.rl.Stdout(), "%s has no timer pin\n", b.Name)
		return
	}
	v, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid value: %v\n", err)
		return
	}
	b.TimerPin.SetInputVoltage(uint16(v))
}

func (s *Sim) cmdBrake(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: brake <block> <pedal> <velocity> [suppress]")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if b.Brake == nil {
		fmt.Fprintf(s.rl.Stdout(), "%s is not a brake-light block\n", b.Name)
		return
	}

	pedal := blocks.PedalUnknown
	if args[1] != "unknown" {
		v, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid pedal value: %v\n", err)
			return
		}
		pedal = uint16(v)
	}

	velocity := blocks.VelocityUnknown
	if args[2] != "unknown" {
		v, err := strconv.ParseInt(args[2], 10, 16)
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid velocity value: %v\n", err)
			return
		}
		velocity = int16(v)
	}

	b.Pedal = pedal
	b.Velocity = velocity
	b.Suppress = len(args) > 3 && args[3] == "suppress"
}

func (s *Sim) cmdFail(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: fail <block> [clear]")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	var cause error
	if len(args) < 2 || args[1] != "clear" {
		cause = errors.New("simulated pin failure")
	}
	switch {
	case b.AnalogPin != nil:
		b.AnalogPin.Fail(cause)
	case b.TimerPin != nil:
		b.TimerPin.Fail(cause)
	default:
		fmt.Fprintf(s.rl.Stdout(), "%s has no pin\n", b.Name)
		return
	}
	if cause != nil {
		fmt.Fprintf(s.rl.Stdout(), "%s: pin failing; the next cycle locks the block\n", b.Name)
	}
}

func (s *Sim) cmdStep(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintln(s.rl.Stdout(), "Usage: step [count]")
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		s.stepAll(s.cycle, true)
	}
	fmt.Fprintf(s.rl.Stdout(), "Advanced %s\n", time.Duration(n)*s.cycle)
}

func (s *Sim) cmdMode(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: mode <block> <mode>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	m, err := ParseMode(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := b.Core().SetMode(m); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s: mode %s\n", b.Name, m)
}

func (s *Sim) cmdInit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: init <block>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if err := b.Core().Init(); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s: %s\n", b.Name, b.Core().State())
}

func (s *Sim) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set <block> <field>=<value>...")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if err := s.updateParameter(b, args[1:], false); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "Parameter updated")
}

func (s *Sim) cmdReinit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: reinit <block> [field=value]...")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}
	if err := s.updateParameter(b, args[1:], true); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "%s reinitialized\n", b.Name)
}

// assignment is one parsed field=value pair.
type assignment struct {
	field string
	value int64
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("expected field=value, got %q", a)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %v", k, err)
		}
		out = append(out, assignment{field: strings.TrimSpace(k), value: n})
	}
	return out, nil
}

// updateParameter reads the live parameter set, applies the assignments and
// commits through SetParameter or ReInit.
func (s *Sim) updateParameter(b *Block, args []string, reinit bool) error {
	assigns, err := parseAssignments(args)
	if err != nil {
		return err
	}

	switch {
	case b.Analog != nil:
		par, err := b.Analog.Parameter()
		if err != nil {
			return err
		}
		for _, a := range assigns {
			if err := applyAnalogField(&par, a); err != nil {
				return err
			}
		}
		if reinit {
			return b.Analog.ReInit(par)
		}
		return b.Analog.SetParameter(par)

	case b.Freq != nil:
		par, err := b.Freq.Parameter()
		if err != nil {
			return err
		}
		for _, a := range assigns {
			if err := applyFreqField(&par, a); err != nil {
				return err
			}
		}
		if reinit {
			return b.Freq.ReInit(par)
		}
		return b.Freq.SetParameter(par)

	default:
		par, err := b.Brake.Parameter()
		if err != nil {
			return err
		}
		for _, a := range assigns {
			if err := applyBrakeField(&par, a); err != nil {
				return err
			}
		}
		if reinit {
			return b.Brake.ReInit(par)
		}
		return b.Brake.SetParameter(par)
	}
}

func applyAnalogField(par *blocks.AnalogParameter, a assignment) error {
	switch strings.ToLower(a.field) {
	case "inpos":
		par.In.Pos = int32(a.value)
	case "inneu":
		par.In.Neu = int32(a.value)
	case "inneg":
		par.In.Neg = int32(a.value)
	case "defaultraw":
		par.DefaultRaw = int32(a.value)
	default:
		return fmt.Errorf("unknown analog parameter field %q", a.field)
	}
	return nil
}

func applyFreqField(par *blocks.FreqParameter, a assignment) error {
	switch strings.ToLower(a.field) {
	case "pulsesperrevolution", "ppr":
		par.PulsesPerRevolution = uint16(a.value)
	case "ratiomul", "mul":
		par.RatioMul = uint16(a.value)
	case "ratiodiv", "div":
		par.RatioDiv = uint16(a.value)
	case "timeout":
		par.Timeout = time.Duration(a.value) * time.Millisecond
	case "averaging", "avg":
		par.Averaging = uint8(a.value)
	case "defaultinput":
		par.DefaultInput = uint32(a.value)
	default:
		return fmt.Errorf("unknown frequency parameter field %q", a.field)
	}
	return nil
}

func applyBrakeField(par *blocks.BrakeParameter, a assignment) error {
	switch strings.ToLower(a.field) {
	case "activationthreshold", "act":
		par.ActivationThreshold = int32(a.value)
	case "deactivationthreshold", "deact":
		par.DeactivationThreshold = int32(a.value)
	case "minpedal":
		par.MinPedal = int32(a.value)
	default:
		return fmt.Errorf("unknown brake parameter field %q", a.field)
	}
	return nil
}

func (s *Sim) cmdSave(args []string) {
	if s.store == nil {
		fmt.Fprintln(s.rl.Stdout(), "Snapshot store disabled")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: save <block>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}

	var parameter any
	var err error
	switch {
	case b.Analog != nil:
		parameter, err = b.Analog.Parameter()
	case b.Freq != nil:
		parameter, err = b.Freq.Parameter()
	default:
		parameter, err = b.Brake.Parameter()
	}
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}

	snap, err := s.store.Save(b.Name, b.Type, b.Core().ID().String(), parameter)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	b.Core().LogSnapshot(snap.Block, snap.Digest, s.store.Path())
	fmt.Fprintf(s.rl.Stdout(), "Saved %s (digest %.16s)\n", b.Name, snap.Digest)
}

func (s *Sim) cmdLoad(args []string) {
	if s.store == nil {
		fmt.Fprintln(s.rl.Stdout(), "Snapshot store disabled")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: load <block>")
		return
	}
	b := s.find(args[0])
	if b == nil {
		return
	}

	snap, err := s.restore(b)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	b.Core().LogSnapshot(snap.Block, snap.Digest, s.store.Path())
	fmt.Fprintf(s.rl.Stdout(), "Restored %s from snapshot saved %s\n",
		b.Name, snap.SavedAt.Format(time.RFC3339))
}

// restore loads the block's snapshot and reinitializes it with the stored
// parameter set.
func (s *Sim) restore(b *Block) (persistence.Snapshot, error) {
	switch {
	case b.Analog != nil:
		var par blocks.AnalogParameter
		snap, err := s.store.Load(b.Name, &par)
		if err != nil {
			return snap, err
		}
		if snap.Type != b.Type {
			return snap, fmt.Errorf("snapshot holds %s parameters", snap.Type)
		}
		return snap, b.Analog.ReInit(par)

	case b.Freq != nil:
		var par blocks.FreqParameter
		snap, err := s.store.Load(b.Name, &par)
		if err != nil {
			return snap, err
		}
		if snap.Type != b.Type {
			return snap, fmt.Errorf("snapshot holds %s parameters", snap.Type)
		}
		return snap, b.Freq.ReInit(par)

	default:
		var par blocks.BrakeParameter
		snap, err := s.store.Load(b.Name, &par)
		if err != nil {
			return snap, err
		}
		if snap.Type != b.Type {
			return snap, fmt.Errorf("snapshot holds %s parameters", snap.Type)
		}
		return snap, b.Brake.ReInit(par)
	}
}

func (s *Sim) cmdSnapshots() {
	if s.store == nil {
		fmt.Fprintln(s.rl.Stdout(), "Snapshot store disabled")
		return
	}
	snaps, err := s.store.List()
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(snaps) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No snapshots stored")
		return
	}
	w := s.rl.Stdout()
	fmt.Fprintf(w, "%-18s %-18s %-25s %s\n", "BLOCK", "TYPE", "SAVED", "DIGEST")
	for _, snap := range snaps {
		fmt.Fprintf(w, "%-18s %-18s %-25s %.16s\n",
			snap.Block, snap.Type, snap.SavedAt.Format(time.RFC3339), snap.Digest)
	}
}

func (s *Sim) cmdVersion() {
	w := s.rl.Stdout()
	fmt.Fprintf(w, "Library version: %s\n", version.Current)
	m, err := version.LoadCurrentManifest()
	if err != nil {
		fmt.Fprintf(w, "Manifest: %v\n", err)
		return
	}
	for _, name := range m.BlockNames() {
		rev, _ := m.BlockRevision(name)
		fmt.Fprintf(w, "  %-20s revision %d\n", name, rev)
	}
}

// ParseMode parses a human-entered operating mode name.
func ParseMode(s string) (block.Mode, error) {
	switch canonical(s) {
	case "RELEASE":
		return block.ModeRelease, nil
	case "FREEZE_INPUT":
		return block.ModeFreezeInput, nil
	case "FREEZE_OUTPUT":
		return block.ModeFreezeOutput, nil
	case "INACTIVE":
		return block.ModeInactive, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// ParsePolicy parses a human-entered reaction policy name.
func ParsePolicy(s string) (block.ReactionPolicy, error) {
	switch canonical(s) {
	case "ERROR_TO_OUTPUT":
		return block.ReactionErrorToOutput, nil
	case "FREEZE_INPUT":
		return block.ReactionFreezeInput, nil
	case "PARAMETER_TO_INPUT":
		return block.ReactionParameterToInput, nil
	}
	return 0, fmt.Errorf("unknown reaction policy %q", s)
}

// ParseCaptureMode parses a human-entered capture mode name.
func ParseCaptureMode(s string) (blocks.CaptureMode, error) {
	switch canonical(s) {
	case "PERIOD":
		return blocks.CapturePeriod, nil
	case "PULSE_HIGH":
		return blocks.CapturePulseHigh, nil
	case "PULSE_LOW":
		return blocks.CapturePulseLow, nil
	}
	return 0, fmt.Errorf("unknown capture mode %q", s)
}

// ParsePinStatus parses a human-entered pin status name.
func ParsePinStatus(s string) (pin.Status, error) {
	switch canonical(s) {
	case "OK":
		return pin.StatusOK, nil
	case "SHORT_TO_POWER", "STP":
		return pin.StatusShortToPower, nil
	case "SHORT_TO_GROUND", "STG":
		return pin.StatusShortToGround, nil
	case "OPEN_LOAD", "OL":
		return pin.StatusOpenLoad, nil
	case "UNKNOWN":
		return pin.StatusUnknown, nil
	}
	return 0, fmt.Errorf("unknown pin status %q", s)
}

func canonical(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
}
