// Package model holds the trained parameter set shared by the context
// network, the target network and the two predictor heads.
//
// Parameters are immutable once built. They come from Init (deterministic
// He-scaled normals), Zero (a uniform predictor) or a blob written by Save.
//
// Blob layout: the 4-byte magic "OCPM", one version byte, then a zstd
// stream holding a gob-encoded table of named tensors.
package model
