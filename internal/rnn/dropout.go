package rnn

import (
	"math/rand"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// GenerateDropoutMask builds the dropout masks for one call.
//
// ones creates a fresh all-ones tensor of the target shape. When training,
// each mask is an independent inverted-dropout sample of it (elements zeroed
// with probability rate, survivors scaled by 1/(1-rate)); otherwise every
// mask is the unmodified ones tensor. count <= 1 yields a single mask.
//
// The caller owns the returned masks and must release them before the next
// call.
func GenerateDropoutMask[B tensor.Backend](
	ones func() *tensor.Tensor[float32, B],
	rate float64,
	training bool,
	count int,
	rng *rand.Rand,
) []*tensor.Tensor[float32, B] {
	count = max(count, 1)
	masks := make([]*tensor.Tensor[float32, B], count)
	for i := range masks {
		base := ones()
		if !training {
			masks[i] = base
			continue
		}
		masks[i] = nn.Dropout(base, rate, rng)
		base.Release()
	}
	return masks
}

// dropoutMasks caches a cell's masks for the duration of one call so the
// same masks apply at every timestep.
type dropoutMasks[B tensor.Backend] struct {
	input     []*tensor.Tensor[float32, B]
	recurrent []*tensor.Tensor[float32, B]
}

func (m *dropoutMasks[B]) inputMasks(
	x *tensor.Tensor[float32, B], rate float64, training bool, count int, rng *rand.Rand,
) []*tensor.Tensor[float32, B] {
	if m.input == nil || !m.input[0].Shape().Equal(x.Shape()) {
		releaseAll(m.input)
		m.input = GenerateDropoutMask(func() *tensor.Tensor[float32, B] { return tensor.OnesLike(x) }, rate, training, count, rng)
	}
	return m.input
}

func (m *dropoutMasks[B]) recurrentMasks(
	h *tensor.Tensor[float32, B], rate float64, training bool, count int, rng *rand.Rand,
) []*tensor.Tensor[float32, B] {
	if m.recurrent == nil || !m.recurrent[0].Shape().Equal(h.Shape()) {
		releaseAll(m.recurrent)
		m.recurrent = GenerateDropoutMask(func() *tensor.Tensor[float32, B] { return tensor.OnesLike(h) }, rate, training, count, rng)
	}
	return m.recurrent
}

func (m *dropoutMasks[B]) reset() {
	releaseAll(m.input)
	releaseAll(m.recurrent)
	m.input, m.recurrent = nil, nil
}

func releaseAll[B tensor.Backend](ts []*tensor.Tensor[float32, B]) {
	for _, t := range ts {
		t.Release()
	}
}
