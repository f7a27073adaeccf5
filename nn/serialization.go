// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/seqnet/internal/serialization"
	"github.com/born-ml/seqnet/tensor"
)

// SaveWeights writes params to path in SafeTensors format, keeping their
// order.
//
// Example:
//
//	err := nn.SaveWeights("encoder.safetensors", layer.Weights(), map[string]string{"cell": "lstm"})
func SaveWeights[B tensor.Backend](path string, params []*Parameter[B], metadata map[string]string) error {
	return serialization.SaveWeights(path, params, metadata)
}

// LoadWeights reads weights written by SaveWeights, in the saved order, so
// they can be passed to a layer's SetWeights. The caller owns the returned
// tensors.
//
// Example:
//
//	ws, meta, err := nn.LoadWeights("encoder.safetensors", backend)
//	err = layer.SetWeights(ws)
func LoadWeights[B tensor.Backend](path string, backend B) ([]*tensor.Tensor[float32, B], map[string]string, error) {
	return serialization.LoadWeights(path, backend)
}
