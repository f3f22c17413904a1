// Package pointio reads and writes the point formats the benchmark harness
// moves between: raw float32 scan buffers, uint32 label files and PLY
// clouds. It also owns the fixed-step quantizer that turns metric points
// into codec voxels and the geometric PSNR used to score reconstructions.
package pointio
