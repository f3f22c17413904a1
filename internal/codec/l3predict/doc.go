// Package l3predict owns Layer 3 (Prediction) of the occupancy codec.
//
// Responsibilities: the two-stage nibble occupancy predictor. Stage 0
// predicts the lower nibble of each candidate's occupancy code from its
// target feature; stage 1 predicts the upper nibble given the true lower
// nibble.
// Key types: Prediction.
//
// Dependency rule: L3 may depend on L1, L2 and model, but never on L4.
package l3predict
