// Package l1voxel owns Layer 1 (Voxels) of the occupancy codec.
//
// Responsibilities: integer voxel coordinates, the canonical voxel order,
// the scale pyramid builder, and candidate expansion of coarse occupancy
// codes into finer voxel positions.
// Key types: Coord, Level, Pyramid, Candidates.
//
// Dependency rule: L1 depends on nothing else in the codec.
// No floating point or network code is allowed in this package.
package l1voxel
