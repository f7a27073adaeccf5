package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/seqnet/backend/cpu"
	"github.com/born-ml/seqnet/nn"
	"github.com/born-ml/seqnet/rnn"
	"github.com/born-ml/seqnet/tensor"
)

type Backend = cpu.Backend

// layerFlags are the layer options shared by run and encode.
type layerFlags struct {
	cell             string
	units            int
	layers           int
	merge            string
	bidirectional    bool
	goBackwards      bool
	dropout          float64
	recurrentDropout float64
	seed             int64
	save             string // weights file written after the call
	load             string // weights file applied before the call
}

// newCell builds one cell of the named kind.
func newCell(kind string, units int, f layerFlags, seed int64, backend *Backend) (rnn.Cell[*Backend], error) {
	switch strings.ToLower(kind) {
	case "simple":
		cfg := rnn.DefaultSimpleRNNConfig(units)
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed = f.dropout, f.recurrentDropout, seed
		return rnn.NewSimpleRNNCell(cfg, backend)
	case "gru":
		cfg := rnn.DefaultGRUConfig(units)
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed = f.dropout, f.recurrentDropout, seed
		return rnn.NewGRUCell(cfg, backend)
	case "lstm":
		cfg := rnn.DefaultLSTMConfig(units)
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed = f.dropout, f.recurrentDropout, seed
		return rnn.NewLSTMCell(cfg, backend)
	default:
		return nil, fmt.Errorf("unknown cell %q (want simple, gru or lstm)", kind)
	}
}

// buildCell returns a single cell, or a stack when f.layers > 1.
func buildCell(f layerFlags, backend *Backend) (rnn.Cell[*Backend], error) {
	if f.layers < 1 {
		return nil, fmt.Errorf("layers must be positive, got %d", f.layers)
	}
	cells := make([]rnn.Cell[*Backend], f.layers)
	for i := range cells {
		seed := f.seed
		if seed != 0 {
			seed += int64(i)
		}
		c, err := newCell(f.cell, f.units, f, seed, backend)
		if err != nil {
			return nil, err
		}
		cells[i] = c
	}
	if len(cells) == 1 {
		return cells[0], nil
	}
	return rnn.NewStackedCells(cells...)
}

// sequenceLayer runs either a single RNN or a bidirectional pair.
type sequenceLayer struct {
	uni *rnn.RNN[*Backend]
	bi  *rnn.Bidirectional[*Backend]
}

func newSequenceLayer(f layerFlags, cfg rnn.RNNConfig, backend *Backend) (*sequenceLayer, error) {
	cell, err := buildCell(f, backend)
	if err != nil {
		return nil, err
	}
	cfg.GoBackwards = f.goBackwards
	layer := rnn.NewRNN(cell, cfg)
	if !f.bidirectional {
		return &sequenceLayer{uni: layer}, nil
	}
	mode, err := rnn.ParseMergeMode(f.merge)
	if err != nil {
		return nil, err
	}
	bi, err := rnn.NewBidirectional(layer, rnn.BidirectionalConfig{MergeMode: mode, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	return &sequenceLayer{bi: bi}, nil
}

func (s *sequenceLayer) build(shape tensor.Shape) error {
	if s.bi != nil {
		return s.bi.Build(shape)
	}
	return s.uni.Build(shape)
}

func (s *sequenceLayer) weights() []*nn.Parameter[*Backend] {
	if s.bi != nil {
		return s.bi.Weights()
	}
	return s.uni.Weights()
}

func (s *sequenceLayer) setWeights(ws []*tensor.Tensor[float32, *Backend]) error {
	if s.bi != nil {
		return s.bi.SetWeights(ws)
	}
	return s.uni.SetWeights(ws)
}

// loadWeights builds the layer for shape and applies the weights in path.
func (s *sequenceLayer) loadWeights(path string, shape tensor.Shape, backend *Backend, log *logrus.Logger) error {
	if err := s.build(shape); err != nil {
		return err
	}
	ws, meta, err := nn.LoadWeights(path, backend)
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	defer func() {
		for _, w := range ws {
			w.Release()
		}
	}()
	if err := s.setWeights(ws); err != nil {
		return fmt.Errorf("load weights: %w", err)
	}
	log.WithFields(logrus.Fields{"path": path, "tensors": len(ws), "metadata": meta}).Info("loaded weights")
	return nil
}

// saveWeights writes the layer weights to path.
func (s *sequenceLayer) saveWeights(path string, f layerFlags, log *logrus.Logger) error {
	meta := map[string]string{
		"cell":          f.cell,
		"units":         fmt.Sprint(f.units),
		"layers":        fmt.Sprint(f.layers),
		"bidirectional": fmt.Sprint(f.bidirectional),
	}
	params := s.weights()
	if err := nn.SaveWeights(path, params, meta); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	log.WithFields(logrus.Fields{"path": path, "tensors": len(params)}).Info("saved weights")
	return nil
}

// call runs the layer and returns its outputs and states. release frees both.
func (s *sequenceLayer) call(x *tensor.Tensor[float32, *Backend], opts rnn.CallOptions[*Backend]) (
	outputs []*tensor.Tensor[float32, *Backend], states rnn.State[*Backend], release func(), err error,
) {
	if s.bi != nil {
		res, err := s.bi.Call(x, opts)
		if err != nil {
			return nil, nil, nil, err
		}
		return res.Outputs, res.States, res.Release, nil
	}
	res, err := s.uni.Call(x, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	return []*tensor.Tensor[float32, *Backend]{res.Outputs}, res.States, res.Release, nil
}

func report(out io.Writer, log *logrus.Logger, outputs []*tensor.Tensor[float32, *Backend], states rnn.State[*Backend]) {
	for i, o := range outputs {
		fmt.Fprintf(out, "output[%d] %v\n", i, o.Shape())
		log.WithFields(logrus.Fields{"index": i, "values": o.Data()}).Debug("output")
	}
	for i, s := range states {
		fmt.Fprintf(out, "state[%d]  %v\n", i, s.Shape())
	}
}
