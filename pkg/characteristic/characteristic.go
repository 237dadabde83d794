package characteristic

import (
	"errors"
	"fmt"
)

// Characteristic errors.
var (
	ErrNonMonotonic    = errors.New("characteristic is not monotonic")
	ErrInvalidDeadZone = errors.New("dead-zone percent out of range")
)

// Direction is the sign of a mapped signal relative to the neutral point.
type Direction int8

const (
	// DirectionNegative indicates the raw value lies on the NEG side.
	DirectionNegative Direction = -1

	// DirectionNeutral indicates the raw value lies inside the dead zone.
	DirectionNeutral Direction = 0

	// DirectionPositive indicates the raw value lies on the POS side.
	DirectionPositive Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionNegative:
		return "NEGATIVE"
	case DirectionNeutral:
		return "NEUTRAL"
	case DirectionPositive:
		return "POSITIVE"
	default:
		return "UNKNOWN"
	}
}

// Points is one three-point calibration triple in POS/NEU/NEG order.
type Points struct {
	Pos int32
	Neu int32
	Neg int32
}

// Monotone reports whether the triple is ordered, rising or falling, with
// ties allowed: Pos >= Neu >= Neg or Pos <= Neu <= Neg.
func Monotone(p Points) bool {
	return !opposed(int64(p.Pos)-int64(p.Neu), int64(p.Neu)-int64(p.Neg))
}

// Curve maps raw pin values onto a signed engineering-unit scale.
// The input triple anchors the raw axis, the output triple anchors the
// result axis, and DeadZonePercent widens the neutral band around Neu.
type Curve struct {
	In  Points
	Out Points

	// DeadZonePercent is the dead-zone width as a percentage (0-100)
	// of the wider input half-range.
	DeadZonePercent uint8
}

// Inverted reports whether the raw axis runs backwards, i.e. the
// positive anchor sits below the negative one.
func (c Curve) Inverted() bool {
	return c.In.Pos < c.In.Neg
}

// DeadZoneHalfWidth returns the raw-unit half-width of the neutral band.
func (c Curve) DeadZoneHalfWidth() int32 {
	posSpan := abs64(int64(c.In.Pos) - int64(c.In.Neu))
	negSpan := abs64(int64(c.In.Neu) - int64(c.In.Neg))
	span := posSpan
	if negSpan > span {
		span = negSpan
	}
	return int32(span * int64(c.DeadZonePercent) / 100)
}

// Validate checks that the curve describes a monotonic mapping.
//
// The input triple must be monotonic over [Pos, Neu, Neg] with Pos != Neg,
// the output triple must be monotonic as well, and a zero-width input side
// requires a zero-width output side. Ties on one side describe a
// single-direction characteristic and are legal.
func (c Curve) Validate() error {
	if c.DeadZonePercent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidDeadZone, c.DeadZonePercent)
	}
	if c.In.Pos == c.In.Neg {
		return fmt.Errorf("%w: input POS equals NEG (%d)", ErrNonMonotonic, c.In.Pos)
	}

	if !Monotone(c.In) {
		return fmt.Errorf("%w: input NEU %d outside POS/NEG range", ErrNonMonotonic, c.In.Neu)
	}
	if !Monotone(c.Out) {
		return fmt.Errorf("%w: output NEU %d outside POS/NEG range", ErrNonMonotonic, c.Out.Neu)
	}

	inPos := int64(c.In.Pos) - int64(c.In.Neu)
	inNeg := int64(c.In.Neu) - int64(c.In.Neg)
	outPos := int64(c.Out.Pos) - int64(c.Out.Neu)
	outNeg := int64(c.Out.Neu) - int64(c.Out.Neg)
	if inPos == 0 && outPos != 0 {
		return fmt.Errorf("%w: zero-width input POS side with non-zero output side", ErrNonMonotonic)
	}
	if inNeg == 0 && outNeg != 0 {
		return fmt.Errorf("%w: zero-width input NEG side with non-zero output side", ErrNonMonotonic)
	}
	return nil
}

// Map converts a raw value into its output value and direction.
//
// Values inside the dead zone yield (Out.Neu, DirectionNeutral). Values
// outside are interpolated linearly on their side of the neutral anchor and
// clamped to that side's output range. Map assumes a validated curve.
func (c Curve) Map(raw int32) (int32, Direction) {
	half := int64(c.DeadZoneHalfWidth())
	offset := int64(raw) - int64(c.In.Neu)
	if abs64(offset) <= half {
		return c.Out.Neu, DirectionNeutral
	}

	// POS side is aboveNEU on a normal scale and below NEU on an
	// inverted one.
	posSide := (raw > c.In.Neu) != c.Inverted()
	if posSide {
		return c.interpolate(raw, c.In.Pos, c.Out.Pos), DirectionPositive
	}
	return c.interpolate(raw, c.In.Neg, c.Out.Neg), DirectionNegative
}

// interpolate maps raw linearly from (In.Neu, Out.Neu) to (inEnd, outEnd),
// clamping to the side's output range.
func (c Curve) interpolate(raw, inEnd, outEnd int32) int32 {
	inSpan := int64(inEnd) - int64(c.In.Neu)
	if inSpan == 0 {
		// Zero-width side; validation guarantees outEnd == Out.Neu.
		return outEnd
	}
	outSpan := int64(outEnd) - int64(c.Out.Neu)
	value := int64(c.Out.Neu) + (int64(raw)-int64(c.In.Neu))*outSpan/inSpan

	lo, hi := int64(c.Out.Neu), int64(outEnd)
	if lo > hi {
		lo, hi = hi, lo
	}
	if value < lo {
		value = lo
	}
	if value > hi {
		value = hi
	}
	return int32(value)
}

// Consistent reports whether a mapped value and direction agree: the value
// must lie within the output range of the side the direction names. Map
// never produces a disagreeing pair; a false result indicates a corrupted
// runtime state.
func (c Curve) Consistent(value int32, dir Direction) bool {
	switch dir {
	case DirectionNeutral:
		return value == c.Out.Neu
	case DirectionPositive:
		return within(value, c.Out.Neu, c.Out.Pos)
	case DirectionNegative:
		return within(value, c.Out.Neu, c.Out.Neg)
	default:
		return false
	}
}

func within(v, a, b int32) bool {
	if a > b {
		a, b = b, a
	}
	return v >= a && v <= b
}

func opposed(a, b int64) bool {
	return (a > 0 && b < 0) || (a < 0 && b > 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
