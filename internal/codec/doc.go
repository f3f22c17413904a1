// Package codec is the root of the hierarchical sparse-voxel occupancy codec.
//
// The codec is organised in four layers, leaves first:
//
//	l1voxel    coordinates, canonical ordering, scale pyramid, candidates
//	l2features sparse convolution context and target networks
//	l3predict  two-stage nibble occupancy predictor
//	l4bitcost  bit-cost accumulation and the level-pair estimator
//
// The model package holds the trained parameter set shared by L2 and L3.
// A layer may depend on lower layers and on model, never on higher layers.
package codec
