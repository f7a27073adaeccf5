// Package serialization saves and loads layer weights in the SafeTensors
// format.
//
// File layout:
//
//	[8 bytes: header size, uint64 little-endian]
//	[header: JSON object, name -> {dtype, shape, data_offsets}]
//	[data section: raw little-endian tensor bytes, sorted by name]
//
// The optional "__metadata__" entry holds string pairs. Files written here
// carry a SHA-256 of the data section under MetaChecksum, which Read
// verifies when present.
//
// Weights of a layer are stored under "<index>.<parameter name>" so that
// LoadWeights returns them in Weights order, ready for SetWeights:
//
//	err := serialization.SaveWeights("encoder.safetensors", layer.Weights(), nil)
//	ws, meta, err := serialization.LoadWeights("encoder.safetensors", backend)
//	err = layer.SetWeights(ws)
package serialization
