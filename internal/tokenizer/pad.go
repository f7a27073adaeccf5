package tokenizer

// Batch is a set of id sequences padded to a common length.
type Batch struct {
	IDs     []int32 // row-major [Size, Steps]
	Lengths []int   // unpadded length of every row, after truncation
	Size    int
	Steps   int
}

// PadBatch right-pads seqs with padID to the longest sequence, or to maxLen
// when maxLen > 0, truncating longer sequences.
func PadBatch(seqs [][]int32, padID int32, maxLen int) Batch {
	steps := maxLen
	if steps <= 0 {
		for _, s := range seqs {
			steps = max(steps, len(s))
		}
	}

	b := Batch{
		IDs:     make([]int32, len(seqs)*steps),
		Lengths: make([]int, len(seqs)),
		Size:    len(seqs),
		Steps:   steps,
	}
	for i, s := range seqs {
		row := b.IDs[i*steps : (i+1)*steps]
		n := copy(row, s)
		for j := n; j < steps; j++ {
			row[j] = padID
		}
		b.Lengths[i] = n
	}
	return b
}

// Shape returns [Size, Steps].
func (b Batch) Shape() []int {
	return []int{b.Size, b.Steps}
}

// Mask returns the [Size, Steps] validity mask: 1 for tokens, 0 for padding.
func (b Batch) Mask() []float32 {
	mask := make([]float32, len(b.IDs))
	for i, n := range b.Lengths {
		for j := 0; j < n; j++ {
			mask[i*b.Steps+j] = 1
		}
	}
	return mask
}

// ShiftIDs returns copies of seqs with every id increased by offset, for
// example to free id 0 for padding.
func ShiftIDs(seqs [][]int32, offset int32) [][]int32 {
	out := make([][]int32, len(seqs))
	for i, s := range seqs {
		out[i] = make([]int32, len(s))
		for j, id := range s {
			out[i][j] = id + offset
		}
	}
	return out
}
