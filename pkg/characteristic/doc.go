// Package characteristic implements the three-point piecewise-linear
// calibration curve used by the analog input blocks.
//
// A curve is anchored by an input triple (POS, NEU, NEG) in raw pin units
// and an output triple in signed engineering units. Raw values map linearly
// between the neutral anchor and the anchor of their side, clamped to the
// side's output range. A configurable dead zone around the neutral anchor
// forces the neutral output.
//
// # Direction
//
// Every mapping also yields a direction (positive, neutral, negative) as an
// independent channel. Comparing POS against NEG fixes the raw-axis
// orientation: POS > NEG is a normal scale, POS < NEG an inverted one.
//
// # Example
//
// With input (20000, 12000, 4000), output (1000, 0, -1000) and a 1 % dead
// zone, the neutral band spans 11920-12080, raw 20000 maps to 1000 and raw
// 4000 maps to -1000. Ties on one side describe single-direction curves,
// e.g. input (20000, 4000, 4000) with output (1000, 0, 0).
package characteristic
