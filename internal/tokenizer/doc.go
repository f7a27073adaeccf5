// Package tokenizer turns text into padded token id batches for sequence
// models.
//
// TikToken wraps the OpenAI byte-pair encodings (cl100k_base, p50k_base,
// r50k_base). PadBatch lays variable-length id sequences out as a
// [batch, time] matrix with per-row lengths and a validity mask, the shape
// recurrent layers and embeddings consume.
//
// Example usage:
//
//	tok, err := tokenizer.NewTikToken("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	seqs, err := tokenizer.EncodeAll(tok, []string{"hello", "hello world"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Reserve id 0 for padding.
//	batch := tokenizer.PadBatch(tokenizer.ShiftIDs(seqs, 1), 0, 0)
//	fmt.Println(batch.Shape(), batch.Lengths)
package tokenizer
