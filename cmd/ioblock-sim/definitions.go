package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ioblock/ioblock-go/cmd/ioblock-sim/interactive"
	"github.com/ioblock/ioblock-go/pkg/block"
	"github.com/ioblock/ioblock-go/pkg/blocks"
	"github.com/ioblock/ioblock-go/pkg/confdb"
	evlog "github.com/ioblock/ioblock-go/pkg/log"
	"github.com/ioblock/ioblock-go/pkg/pin"
)

// link decodes a configuration value that is either a literal number or a
// provider key reference.
type link struct {
	set  bool
	link confdb.Link
}

func (l *link) UnmarshalYAML(node *yaml.Node) error {
	var v int64
	if err := node.Decode(&v); err == nil {
		l.set = true
		l.link = confdb.Literal(v)
		return nil
	}
	var s string
	if err := node.Decode(&s); err == nil {
		l.set = true
		l.link = confdb.Keyed(s)
		return nil
	}
	return fmt.Errorf("line %d: expected a number or a key string", node.Line)
}

// definitionsFile is the YAML schema of a simulator block-definition file.
type definitionsFile struct {
	// Cycle overrides the simulator cycle period, e.g. "25ms".
	Cycle string `yaml:"cycle"`

	// Values names a YAML value-provider file for keyed links.
	Values string `yaml:"values"`

	Blocks []blockDefinition `yaml:"blocks"`
}

// blockDefinition describes one block to create. Property and parameter
// fields not listed keep the type's defaults.
type blockDefinition struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Mode    string `yaml:"mode"`
	Policy  string `yaml:"policy"`
	Capture string `yaml:"capture"`

	// Raw is the initial manual-pin reading of an analog block.
	Raw *int32 `yaml:"raw"`

	Property  map[string]link `yaml:"property"`
	Parameter map[string]link `yaml:"parameter"`
}

func loadDefinitions(path string) (*definitionsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs := &definitionsFile{}
	if err := yaml.Unmarshal(data, defs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return defs, nil
}

// demoDefinitions is the built-in block set used when no definitions file
// exists. One block of each standard type, all defaults.
func demoDefinitions() *definitionsFile {
	return &definitionsFile{
		Blocks: []blockDefinition{
			{Name: "accel-current", Type: blocks.TypeCurrent},
			{Name: "steer-voltage", Type: blocks.TypeVoltage},
			{Name: "gearbox-speed", Type: blocks.TypeFreq},
			{Name: "brake-light", Type: blocks.TypeBrakeLight},
		},
	}
}

// buildBlocks creates one simulator block per definition. Blocks are created
// but not initialized; the caller runs Init so a failing configuration
// still shows up in the shell.
func buildBlocks(defs *definitionsFile, reg *block.Registry, provider confdb.Provider, logger evlog.Logger) ([]*interactive.Block, error) {
	out := make([]*interactive.Block, 0, len(defs.Blocks))
	for _, def := range defs.Blocks {
		if def.Name == "" {
			return nil, fmt.Errorf("block definition without a name")
		}

		var (
			b   *interactive.Block
			err error
		)
		switch def.Type {
		case blocks.TypeCurrent, blocks.TypeVoltage:
			b, err = buildAnalog(def, reg, provider, logger)
		case blocks.TypeFreq:
			b, err = buildFreq(def, reg, provider, logger)
		case blocks.TypeBrakeLight:
			b, err = buildBrake(def, reg, provider, logger)
		default:
			err = fmt.Errorf("unknown block type %q", def.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", def.Name, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func buildAnalog(def blockDefinition, reg *block.Registry, provider confdb.Provider, logger evlog.Logger) (*interactive.Block, error) {
	cfg := blocks.DefaultCurrentConfig()
	if def.Type == blocks.TypeVoltage {
		cfg = blocks.DefaultVoltageConfig()
	}
	cfg.Name = def.Name
	cfg.Provider = provider
	cfg.Logger = logger

	if err := applyCommon(def, &cfg.InitialMode, &cfg.Property.Policy); err != nil {
		return nil, err
	}
	if def.Capture != "" {
		return nil, fmt.Errorf("capture mode applies to %s blocks only", blocks.TypeFreq)
	}
	err := applyLinks(def.Property, map[string]*confdb.Link{
		"upperLimit":      &cfg.Property.UpperLimit,
		"lowerLimit":      &cfg.Property.LowerLimit,
		"outPos":          &cfg.Property.OutPos,
		"outNeu":          &cfg.Property.OutNeu,
		"outNeg":          &cfg.Property.OutNeg,
		"deadZonePercent": &cfg.Property.DeadZonePercent,
	})
	if err != nil {
		return nil, err
	}
	err = applyLinks(def.Parameter, map[string]*confdb.Link{
		"inPos":      &cfg.Parameter.InPos,
		"inNeu":      &cfg.Parameter.InNeu,
		"inNeg":      &cfg.Parameter.InNeg,
		"defaultRaw": &cfg.Parameter.DefaultRaw,
	})
	if err != nil {
		return nil, err
	}

	// The pin starts at the neutral calibration point unless the
	// definition pins it elsewhere.
	raw := int32(0)
	if v, err := cfg.Parameter.InNeu.Resolve(provider); err == nil {
		raw = int32(v)
	}
	if def.Raw != nil {
		raw = *def.Raw
	}
	p := pin.NewManualAnalog(raw)
	cfg.Pin = p

	open := blocks.NewCurrentInput
	if def.Type == blocks.TypeVoltage {
		open = blocks.NewVoltageInput
	}
	b, err := open(reg, cfg)
	if err != nil {
		return nil, err
	}
	return &interactive.Block{Name: def.Name, Type: def.Type, Analog: b, AnalogPin: p}, nil
}

func buildFreq(def blockDefinition, reg *block.Registry, provider confdb.Provider, logger evlog.Logger) (*interactive.Block, error) {
	cfg := blocks.DefaultFreqConfig()
	cfg.Name = def.Name
	cfg.Provider = provider
	cfg.Logger = logger

	if err := applyCommon(def, &cfg.InitialMode, &cfg.Property.Policy); err != nil {
		return nil, err
	}
	if def.Capture != "" {
		m, err := interactive.ParseCaptureMode(def.Capture)
		if err != nil {
			return nil, err
		}
		cfg.Property.Capture = m
	}
	if def.Raw != nil {
		return nil, fmt.Errorf("raw applies to analog blocks only")
	}
	err := applyLinks(def.Property, map[string]*confdb.Link{
		"signalLowTolerance":  &cfg.Property.SignalLowTolerance,
		"signalHighTolerance": &cfg.Property.SignalHighTolerance,
	})
	if err != nil {
		return nil, err
	}
	err = applyLinks(def.Parameter, map[string]*confdb.Link{
		"pulsesPerRevolution": &cfg.Parameter.PulsesPerRevolution,
		"ratioMul":            &cfg.Parameter.RatioMul,
		"ratioDiv":            &cfg.Parameter.RatioDiv,
		"timeout":             &cfg.Parameter.Timeout,
		"averaging":           &cfg.Parameter.Averaging,
		"defaultInput":        &cfg.Parameter.DefaultInput,
	})
	if err != nil {
		return nil, err
	}

	p := pin.NewManualTimer()
	cfg.Pin = p

	b, err := blocks.NewFreqInput(reg, cfg)
	if err != nil {
		return nil, err
	}
	return &interactive.Block{Name: def.Name, Type: def.Type, Freq: b, TimerPin: p}, nil
}

func buildBrake(def blockDefinition, reg *block.Registry, provider confdb.Provider, logger evlog.Logger) (*interactive.Block, error) {
	cfg := blocks.DefaultBrakeConfig()
	cfg.Name = def.Name
	cfg.Provider = provider
	cfg.Logger = logger

	if def.Mode != "" {
		m, err := interactive.ParseMode(def.Mode)
		if err != nil {
			return nil, err
		}
		cfg.InitialMode = m
	}
	if def.Policy != "" || def.Capture != "" || def.Raw != nil {
		return nil, fmt.Errorf("policy, capture and raw do not apply to %s blocks", blocks.TypeBrakeLight)
	}
	err := applyLinks(def.Property, map[string]*confdb.Link{
		"filterConstant": &cfg.Property.FilterConstant,
		"delay":          &cfg.Property.Delay,
	})
	if err != nil {
		return nil, err
	}
	err = applyLinks(def.Parameter, map[string]*confdb.Link{
		"activationThreshold":   &cfg.Parameter.ActivationThreshold,
		"deactivationThreshold": &cfg.Parameter.DeactivationThreshold,
		"minPedal":              &cfg.Parameter.MinPedal,
	})
	if err != nil {
		return nil, err
	}

	b, err := blocks.NewBrakeLight(reg, cfg)
	if err != nil {
		return nil, err
	}
	return &interactive.Block{Name: def.Name, Type: def.Type, Brake: b}, nil
}

// applyCommon maps the shared mode and policy strings of a definition.
func applyCommon(def blockDefinition, mode *block.Mode, policy *block.ReactionPolicy) error {
	if def.Mode != "" {
		m, err := interactive.ParseMode(def.Mode)
		if err != nil {
			return err
		}
		*mode = m
	}
	if def.Policy != "" {
		p, err := interactive.ParsePolicy(def.Policy)
		if err != nil {
			return err
		}
		*policy = p
	}
	return nil
}

// applyLinks overrides the template links named in src. Unknown field names
// are rejected so definition typos fail loudly.
func applyLinks(src map[string]link, dst map[string]*confdb.Link) error {
	for key, l := range src {
		target, ok := dst[key]
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}
		*target = l.link
	}
	return nil
}
