package nn

import (
	"math/rand"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Dropout applies inverted dropout to x and returns a new tensor.
//
// Each element is zeroed with probability rate; survivors are scaled by
// 1/(1-rate) so the expected value is unchanged. rate <= 0 returns a copy
// of x, rate >= 1 returns zeros. A nil rng uses the global math/rand source.
func Dropout[B tensor.Backend](x *tensor.Tensor[float32, B], rate float64, rng *rand.Rand) *tensor.Tensor[float32, B] {
	out := x.Clone()
	if rate <= 0 {
		return out
	}

	data := out.Data()
	if rate >= 1 {
		clear(data)
		return out
	}

	scale := float32(1 / (1 - rate))
	for i := range data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			//nolint:gosec // math/rand is appropriate for dropout sampling
			u = rand.Float64()
		}
		if u < rate {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}
