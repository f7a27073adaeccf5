package rnn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/backend/cpu"
	"github.com/born-ml/seqnet/internal/tensor"
)

func TestGenerateDropoutMask_Inference(t *testing.T) {
	backend := cpu.New()
	ones := func() *T32 { return tensor.Ones[float32](tensor.Shape{4, 5}, backend) }
	want := make([]float32, 20)
	for i := range want {
		want[i] = 1
	}

	for _, rate := range []float64{0.3, 0.9} {
		for _, count := range []int{1, 3} {
			masks := GenerateDropoutMask(ones, rate, false, count, rand.New(rand.NewSource(1)))
			require.Len(t, masks, count)
			for _, m := range masks {
				assert.Equal(t, want, m.Data(), "rate %v count %d", rate, count)
			}
			releaseAll(masks)
		}
	}
}

func TestGenerateDropoutMask_Training(t *testing.T) {
	backend := cpu.New()
	ones := func() *T32 { return tensor.Ones[float32](tensor.Shape{50, 40}, backend) }
	const rate = 0.25
	scale := float32(1 / (1 - rate))

	masks := GenerateDropoutMask(ones, rate, true, 4, rand.New(rand.NewSource(42)))
	require.Len(t, masks, 4)
	defer releaseAll(masks)

	for _, m := range masks {
		zeros := 0
		for _, v := range m.Data() {
			if v == 0 {
				zeros++
				continue
			}
			assert.InDelta(t, scale, v, 1e-6)
		}
		frac := float64(zeros) / 2000
		assert.InDelta(t, rate, frac, 0.05)
	}
	assert.NotEqual(t, masks[0].Data(), masks[1].Data(), "masks are sampled independently")
}

func TestGenerateDropoutMask_CountFloor(t *testing.T) {
	backend := cpu.New()
	ones := func() *T32 { return tensor.Ones[float32](tensor.Shape{2}, backend) }

	assert.Len(t, GenerateDropoutMask(ones, 0.5, false, 0, nil), 1)
	assert.Len(t, GenerateDropoutMask(ones, 0.5, true, -3, rand.New(rand.NewSource(1))), 1)
}

func TestDropoutMasks_RegenerateOnShapeChange(t *testing.T) {
	backend := cpu.New()
	var m dropoutMasks[*Backend]
	rng := rand.New(rand.NewSource(3))

	a := m.inputMasks(zeros(backend, 2, 3), 0.5, true, 2, rng)
	assert.Same(t, a[0], m.inputMasks(zeros(backend, 2, 3), 0.5, true, 2, rng)[0])

	b := m.inputMasks(zeros(backend, 5, 3), 0.5, true, 2, rng)
	assert.True(t, a[0].Released())
	assert.Equal(t, tensor.Shape{5, 3}, b[0].Shape())

	m.reset()
	assert.True(t, b[1].Released())
	assert.Nil(t, m.input)
}
