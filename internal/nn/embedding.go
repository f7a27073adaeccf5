package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Embedding is a lookup table that maps token ids to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim]
//   - Forward: ids [batch, time] -> embeddings [batch, time, EmbedDim]
//   - ComputeMask (MaskZero): ids [batch, time] -> mask [batch, time], 0 where id == 0
//
// With MaskZero, id 0 is reserved for padding and the mask is what the
// recurrent driver consumes to hold state over padded timesteps.
//
// Example:
//
//	embed := nn.NewEmbedding(1000, 16, rng, backend)
//	embed.MaskZero = true
//	x, _ := embed.Forward(ids, tensor.Shape{2, 5}) // [2, 5, 16]
//	mask, _ := embed.ComputeMask(ids, tensor.Shape{2, 5})
type Embedding[B tensor.Backend] struct {
	Weight   *Parameter[B] // [NumEmbed, EmbedDim]
	NumEmbed int
	EmbedDim int
	MaskZero bool
	backend  B
}

// NewEmbedding creates a new Embedding layer with weights drawn from
// U(-0.05, 0.05).
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, rng *rand.Rand, backend B) *Embedding[B] {
	weight := tensor.Rand[float32](tensor.Shape{numEmbeddings, embeddingDim}, rng, backend)
	data := weight.Data()
	for i := range data {
		data[i] = (data[i]*2 - 1) * 0.05
	}

	return &Embedding[B]{
		Weight:   NewParameter("embedding.weight", weight),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
		backend:  backend,
	}
}

// NewEmbeddingWithWeight creates an Embedding layer with pre-initialized
// weights of shape [numEmbeddings, embeddingDim].
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}

	return &Embedding[B]{
		Weight:   NewParameter("embedding.weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
		backend:  weight.Backend(),
	}
}

// Forward looks up the embedding of every id. ids is laid out row-major
// with the given shape; the result has shape [...shape, EmbedDim].
func (e *Embedding[B]) Forward(ids []int32, shape tensor.Shape) (*tensor.Tensor[float32, B], error) {
	if shape.NumElements() != len(ids) {
		return nil, fmt.Errorf("embedding: shape %v requires %d ids, got %d", shape, shape.NumElements(), len(ids))
	}

	outShape := append(shape.Clone(), e.EmbedDim)
	out := tensor.Zeros[float32](outShape, e.backend)
	dst := out.Data()
	table := e.Weight.Tensor().Data()

	for i, id := range ids {
		if id < 0 || int(id) >= e.NumEmbed {
			out.Release()
			return nil, fmt.Errorf("embedding: id %d at position %d out of range [0, %d)", id, i, e.NumEmbed)
		}
		row := int(id) * e.EmbedDim
		copy(dst[i*e.EmbedDim:(i+1)*e.EmbedDim], table[row:row+e.EmbedDim])
	}
	return out, nil
}

// ComputeMask returns a mask with the same shape as ids: 1 for real tokens,
// 0 for padding id 0. It returns nil when MaskZero is off.
func (e *Embedding[B]) ComputeMask(ids []int32, shape tensor.Shape) (*tensor.Tensor[float32, B], error) {
	if !e.MaskZero {
		return nil, nil
	}
	if shape.NumElements() != len(ids) {
		return nil, fmt.Errorf("embedding mask: shape %v requires %d ids, got %d", shape, shape.NumElements(), len(ids))
	}

	mask := tensor.Zeros[float32](shape, e.backend)
	data := mask.Data()
	for i, id := range ids {
		if id != 0 {
			data[i] = 1
		}
	}
	return mask, nil
}

// Parameters returns the embedding table.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}
