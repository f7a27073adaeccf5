// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the building blocks recurrent layers are made of:
// parameters, initializers, activations, dropout, embeddings and a
// linear projection.
//
// # Basic Usage
//
//	backend := cpu.New()
//
//	emb := nn.NewEmbedding(1000, 32, nil, backend)
//	emb.MaskZero = true
//	x, _ := emb.Forward(ids, tensor.Shape{batch, steps}) // [batch, steps, 32]
//	mask, _ := emb.ComputeMask(ids, tensor.Shape{batch, steps})
//
//	head := nn.NewLinear(64, 10, nil, backend)
//	logits := head.Forward(h)
//
// Activations are resolved by name:
//
//	act, err := nn.GetActivation("tanh", backend)
package nn
