// Package validate checks equilibrium records before they are imported.
//
// Field ranges live in an embedded CUE schema (record.cue):
//
//	temperature  100..1000 K
//	pressure     0..10000 MPa
//	x_*          0..1
//
// On top of the schema, the mole fractions must not all be zero and must sum
// to 1 within Config.SumHardTolerance. These are errors and block the
// import.
//
// Warnings never block an import. A record warns when its pressure exceeds
// Config.PressureSoftMax or when its fraction sum is off by more than
// Config.SumSoftTolerance (but within the hard tolerance).
package validate
