// Package bench runs the bit-cost estimator over a dataset tree.
//
// A run discovers every point file below a root, skips files the result
// store already holds at the same quantization step, and farms the rest out
// to a bounded worker pool. Each file is read, quantized onto the voxel
// grid, turned into a scale pyramid and estimated; the outcome is recorded
// whether it succeeded or not. Workers share only the immutable estimator,
// the store and the metrics.
package bench
