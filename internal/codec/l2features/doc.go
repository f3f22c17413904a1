// Package l2features owns Layer 2 (Features) of the occupancy codec.
//
// Responsibilities: sparse 3D convolution over voxel neighbourhoods,
// residual blocks, the context network that encodes a coarse level from its
// occupancy codes, and the target network that encodes candidate voxels.
// Key functions: ContextFeatures, TargetFeatures.
//
// Dependency rule: L2 may depend on L1 and model, but never on L3+.
// Feature matrices are returned fresh and never stored on a Level.
package l2features
