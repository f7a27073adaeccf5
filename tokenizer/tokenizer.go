// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tokenizer turns text into padded id batches for sequence layers.
//
// Example usage:
//
//	tok, err := tokenizer.NewTikToken(tokenizer.EncodingCL100kBase)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	seqs, err := tokenizer.EncodeAll(tok, []string{"hello", "hello world"})
//	batch := tokenizer.PadBatch(tokenizer.ShiftIDs(seqs, 1), 0, 0)
//	// batch.IDs is [batch.Size, batch.Steps]; id 0 is padding.
package tokenizer

import "github.com/born-ml/seqnet/internal/tokenizer"

// Tokenizer is the core interface for text tokenization.
type Tokenizer = tokenizer.Tokenizer

// TikToken is an OpenAI BPE tokenizer backed by pkoukk/tiktoken-go.
type TikToken = tokenizer.TikToken

// Batch is a set of id sequences padded to a common length.
type Batch = tokenizer.Batch

// Encoding names understood by NewTikToken.
const (
	EncodingCL100kBase = tokenizer.EncodingCL100kBase
	EncodingP50kBase   = tokenizer.EncodingP50kBase
	EncodingR50kBase   = tokenizer.EncodingR50kBase
)

// NewTikToken creates a tokenizer for the named encoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	return tokenizer.NewTikToken(encodingName)
}

// EncodeAll encodes every text with tok.
func EncodeAll(tok Tokenizer, texts []string) ([][]int32, error) {
	return tokenizer.EncodeAll(tok, texts)
}

// PadBatch right-pads seqs with padID to the longest sequence, or to maxLen
// when maxLen > 0.
func PadBatch(seqs [][]int32, padID int32, maxLen int) Batch {
	return tokenizer.PadBatch(seqs, padID, maxLen)
}

// ShiftIDs returns copies of seqs with every id increased by offset.
func ShiftIDs(seqs [][]int32, offset int32) [][]int32 {
	return tokenizer.ShiftIDs(seqs, offset)
}
