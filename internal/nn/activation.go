package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Activation maps a tensor element-wise to a new tensor.
// The "linear" activation returns its input unchanged.
type Activation[B tensor.Backend] func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

var activationNames = map[string]struct{}{
	"linear":       {},
	"tanh":         {},
	"sigmoid":      {},
	"hard_sigmoid": {},
	"relu":         {},
}

// ActivationNames returns the registered activation names, sorted.
func ActivationNames() []string {
	names := make([]string, 0, len(activationNames))
	for name := range activationNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetActivation resolves an activation by name.
//
// The backend must implement the matching capability interface
// (tensor.TanhBackend, tensor.SigmoidBackend, ...); this is checked here
// rather than on first use so misconfigured cells fail at construction.
//
// Example:
//
//	act, err := nn.GetActivation("tanh", backend)
//	h := act(z)
func GetActivation[B tensor.Backend](name string, backend B) (Activation[B], error) {
	switch name {
	case "linear", "":
		return func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] { return x }, nil
	case "tanh":
		tb, ok := any(backend).(tensor.TanhBackend)
		if !ok {
			return nil, unsupportedActivation(name, backend)
		}
		return rawActivation[B](tb.Tanh), nil
	case "sigmoid":
		sb, ok := any(backend).(tensor.SigmoidBackend)
		if !ok {
			return nil, unsupportedActivation(name, backend)
		}
		return rawActivation[B](sb.Sigmoid), nil
	case "hard_sigmoid":
		hb, ok := any(backend).(tensor.HardSigmoidBackend)
		if !ok {
			return nil, unsupportedActivation(name, backend)
		}
		return rawActivation[B](hb.HardSigmoid), nil
	case "relu":
		rb, ok := any(backend).(tensor.ReLUBackend)
		if !ok {
			return nil, unsupportedActivation(name, backend)
		}
		return rawActivation[B](rb.ReLU), nil
	default:
		return nil, fmt.Errorf("unknown activation %q (known: %v)", name, ActivationNames())
	}
}

func rawActivation[B tensor.Backend](f func(*tensor.RawTensor) *tensor.RawTensor) Activation[B] {
	return func(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		return tensor.New[float32, B](f(x.Raw()), x.Backend())
	}
}

func unsupportedActivation[B tensor.Backend](name string, backend B) error {
	return fmt.Errorf("activation %q: backend %s does not implement it", name, backend.Name())
}
