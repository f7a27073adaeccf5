// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
//   - Pure Go implementation (no CGO)
//   - Matrix products through gonum BLAS
//   - Float32 and Float64 support
//   - NumPy-compatible broadcasting
//   - Large elementwise kernels split across goroutines
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/seqnet/backend/cpu"
//	    "github.com/born-ml/seqnet/rnn"
//	    "github.com/born-ml/seqnet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros[float32](tensor.Shape{8, 20, 16}, backend)
//	    cell, _ := rnn.NewLSTMCell(rnn.DefaultLSTMConfig(32), backend)
//	    layer := rnn.NewRNN[*cpu.Backend](cell, rnn.RNNConfig{})
//	    res, _ := layer.Call(x, rnn.CallOptions[*cpu.Backend]{})
//	    defer res.Release()
//	}
package cpu
