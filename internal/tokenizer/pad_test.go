package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadBatch(t *testing.T) {
	seqs := [][]int32{{5, 6, 7}, {8}, {}}

	b := PadBatch(seqs, 0, 0)
	assert.Equal(t, []int{3, 3}, b.Shape())
	assert.Equal(t, []int32{5, 6, 7, 8, 0, 0, 0, 0, 0}, b.IDs)
	assert.Equal(t, []int{3, 1, 0}, b.Lengths)
	assert.Equal(t, []float32{1, 1, 1, 1, 0, 0, 0, 0, 0}, b.Mask())

	// Inputs are not modified.
	assert.Equal(t, []int32{8}, seqs[1])
}

func TestPadBatch_MaxLen(t *testing.T) {
	b := PadBatch([][]int32{{1, 2, 3, 4}, {9}}, -1, 2)
	assert.Equal(t, 2, b.Steps)
	assert.Equal(t, []int32{1, 2, 9, -1}, b.IDs)
	assert.Equal(t, []int{2, 1}, b.Lengths)
	assert.Equal(t, []float32{1, 1, 1, 0}, b.Mask())
}

func TestPadBatch_Empty(t *testing.T) {
	b := PadBatch(nil, 0, 0)
	assert.Equal(t, 0, b.Size)
	assert.Empty(t, b.IDs)
	assert.Empty(t, b.Mask())
}

func TestShiftIDs(t *testing.T) {
	seqs := [][]int32{{0, 1}, {7}}
	shifted := ShiftIDs(seqs, 1)
	assert.Equal(t, [][]int32{{1, 2}, {8}}, shifted)
	assert.Equal(t, [][]int32{{0, 1}, {7}}, seqs)
}

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) ([]int32, error) {
	ids := make([]int32, len(text))
	for i := range text {
		ids[i] = int32(text[i])
	}
	return ids, nil
}
func (fakeTokenizer) Decode([]int32) (string, error) { return "", nil }
func (fakeTokenizer) VocabSize() int                 { return 256 }
func (fakeTokenizer) EosToken() int32                { return -1 }

func TestEncodeAll_PadsIntoBatch(t *testing.T) {
	seqs, err := EncodeAll(fakeTokenizer{}, []string{"ab", "c"})
	assert.NoError(t, err)
	b := PadBatch(ShiftIDs(seqs, 1), 0, 0)
	assert.Equal(t, []int32{98, 99, 100, 0}, b.IDs)
}
