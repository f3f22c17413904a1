// Package l4bitcost owns Layer 4 (Bit cost) of the occupancy codec.
//
// Responsibilities: turning predicted probabilities into information
// content, folding per-level costs into a bits-per-point figure, and the
// Estimator that walks a pyramid pair by pair through L1-L3.
// Key types: Estimator, Accumulator, Result, LevelCost.
//
// Dependency rule: L4 may depend on L1-L3 and model.
package l4bitcost
