package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/seqnet/backend/cpu"
	"github.com/born-ml/seqnet/rnn"
	"github.com/born-ml/seqnet/tensor"
)

func bindLayerFlags(fs *flag.FlagSet, f *layerFlags) {
	fs.StringVar(&f.cell, "cell", "lstm", "Cell type: simple, gru or lstm")
	fs.IntVar(&f.units, "units", 8, "Units per cell")
	fs.IntVar(&f.layers, "layers", 1, "Number of stacked cells")
	fs.BoolVar(&f.bidirectional, "bidirectional", false, "Run forward and backward and merge")
	fs.StringVar(&f.merge, "merge", "concat", "Bidirectional merge mode: concat, sum, ave, mul or none")
	fs.BoolVar(&f.goBackwards, "backwards", false, "Iterate the sequence in reverse")
	fs.Float64Var(&f.dropout, "dropout", 0, "Input dropout rate (training only)")
	fs.Float64Var(&f.recurrentDropout, "recurrent-dropout", 0, "Recurrent dropout rate (training only)")
	fs.Int64Var(&f.seed, "seed", 1, "Random seed (0 = nondeterministic)")
	fs.StringVar(&f.save, "save", "", "Write layer weights to this SafeTensors file")
	fs.StringVar(&f.load, "load", "", "Read layer weights from this SafeTensors file")
}

func runCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(out)
	var lf layerFlags
	bindLayerFlags(fs, &lf)
	batch := fs.Int("batch", 2, "Batch size")
	steps := fs.Int("steps", 5, "Sequence length")
	features := fs.Int("features", 3, "Input features")
	sequences := fs.Bool("sequences", true, "Return every timestep")
	training := fs.Bool("training", false, "Enable dropout")
	lengths := fs.String("lengths", "", "Comma-separated valid length per batch row (mask)")
	level := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := newLogger(*level, out)
	if err != nil {
		return err
	}
	backend := cpu.New()

	layer, err := newSequenceLayer(lf, rnn.RNNConfig{
		Name:            lf.cell,
		ReturnSequences: *sequences,
		ReturnState:     true,
		Logger:          log,
	}, backend)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(lf.seed)) //nolint:gosec // G404: sample data
	x := tensor.Randn[float32](tensor.Shape{*batch, *steps, *features}, rng, backend)
	defer x.Release()

	opts := rnn.CallOptions[*Backend]{Training: *training}
	if *lengths != "" {
		mask, err := lengthMask(*lengths, *batch, *steps, backend)
		if err != nil {
			return err
		}
		defer mask.Release()
		opts.Mask = mask
	}

	log.WithFields(logrus.Fields{
		"cell":          lf.cell,
		"units":         lf.units,
		"layers":        lf.layers,
		"bidirectional": lf.bidirectional,
		"input":         x.Shape(),
	}).Info("running layer")

	if lf.load != "" {
		if err := layer.loadWeights(lf.load, x.Shape(), backend, log); err != nil {
			return err
		}
	}
	outputs, states, release, err := layer.call(x, opts)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer release()
	report(out, log, outputs, states)

	if lf.save != "" {
		return layer.saveWeights(lf.save, lf, log)
	}
	return nil
}

// lengthMask builds a [batch, steps] mask from per-row valid lengths.
func lengthMask(spec string, batch, steps int, backend *Backend) (*tensor.Tensor[float32, *Backend], error) {
	var lens []int
	for _, field := range splitList(spec) {
		var n int
		if _, err := fmt.Sscanf(field, "%d", &n); err != nil {
			return nil, fmt.Errorf("invalid length %q: %w", field, err)
		}
		lens = append(lens, n)
	}
	if len(lens) != batch {
		return nil, fmt.Errorf("got %d lengths for batch size %d", len(lens), batch)
	}
	data := make([]float32, batch*steps)
	for i, n := range lens {
		for j := 0; j < min(n, steps); j++ {
			data[i*steps+j] = 1
		}
	}
	return tensor.FromSlice(data, tensor.Shape{batch, steps}, backend)
}
