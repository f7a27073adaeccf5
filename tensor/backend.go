// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/seqnet/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and panic
// on programmer errors such as mismatched shapes.
//
// Implementations:
//   - backend/cpu: Pure Go, gonum BLAS for matrix products
//
// Example:
//
//	import (
//	    "github.com/born-ml/seqnet/backend/cpu"
//	    "github.com/born-ml/seqnet/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y) // backend.Add under the hood
type Backend = tensor.Backend

// Optional activation capabilities. Activations the recurrent cells use
// are looked up through these.
type (
	SigmoidBackend     = tensor.SigmoidBackend
	HardSigmoidBackend = tensor.HardSigmoidBackend
	TanhBackend        = tensor.TanhBackend
	ReLUBackend        = tensor.ReLUBackend
)
