// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/tensor"
)

// Module is a component with a single-input forward pass and named
// parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named weight tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter owning t.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}
