package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/seqnet/backend/cpu"
	"github.com/born-ml/seqnet/nn"
	"github.com/born-ml/seqnet/rnn"
	"github.com/born-ml/seqnet/tensor"
	"github.com/born-ml/seqnet/tokenizer"
)

func encodeCommand(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(out)
	lf := layerFlags{}
	bindLayerFlags(fs, &lf)
	encoding := fs.String("encoding", tokenizer.EncodingCL100kBase, "tiktoken encoding")
	embedDim := fs.Int("embed", 16, "Embedding size")
	classes := fs.Int("classes", 4, "Size of the linear head over the encoding (0 = none)")
	maxLen := fs.Int("max-len", 0, "Truncate sequences to this many tokens (0 = longest)")
	input := fs.String("file", "", "Read one text per line from this file instead of arguments")
	level := fs.String("log-level", "info", "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !isFlagSet(fs, "bidirectional") {
		lf.bidirectional = true
	}

	log, err := newLogger(*level, out)
	if err != nil {
		return err
	}

	texts := fs.Args()
	if *input != "" {
		texts, err = readLines(*input)
		if err != nil {
			return err
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("encode: no input texts")
	}

	tok, err := tokenizer.NewTikToken(*encoding)
	if err != nil {
		return err
	}
	seqs, err := tokenizer.EncodeAll(tok, texts)
	if err != nil {
		return err
	}
	// Id 0 is reserved for padding.
	batch := tokenizer.PadBatch(tokenizer.ShiftIDs(seqs, 1), 0, *maxLen)
	log.WithFields(logrus.Fields{
		"encoding": *encoding,
		"texts":    batch.Size,
		"steps":    batch.Steps,
		"lengths":  batch.Lengths,
	}).Info("tokenized")
	if batch.Steps == 0 {
		return fmt.Errorf("encode: every text is empty")
	}

	backend := cpu.New()
	rng := rand.New(rand.NewSource(lf.seed)) //nolint:gosec // G404: weight init
	vocab := tok.VocabSize() + 1
	for _, id := range batch.IDs {
		vocab = max(vocab, int(id)+1)
	}
	emb := nn.NewEmbedding(vocab, *embedDim, rng, backend)
	emb.MaskZero = true

	shape := tensor.Shape(batch.Shape())
	x, err := emb.Forward(batch.IDs, shape)
	if err != nil {
		return err
	}
	defer x.Release()
	mask, err := emb.ComputeMask(batch.IDs, shape)
	if err != nil {
		return err
	}
	defer mask.Release()

	layer, err := newSequenceLayer(lf, rnn.RNNConfig{
		Name:        "encoder",
		ReturnState: true,
		Logger:      log,
	}, backend)
	if err != nil {
		return err
	}
	if lf.load != "" {
		if err := layer.loadWeights(lf.load, x.Shape(), backend, log); err != nil {
			return err
		}
	}
	outputs, states, release, err := layer.call(x, rnn.CallOptions[*Backend]{Mask: mask})
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	defer release()
	report(out, log, outputs, states)

	if *classes > 0 {
		logits := project(outputs, *classes, rng, backend)
		fmt.Fprintf(out, "logits    %v\n", logits.Shape())
		log.WithField("values", logits.Data()).Debug("logits")
		logits.Release()
	}

	if lf.save != "" {
		return layer.saveWeights(lf.save, lf, log)
	}
	return nil
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-provided input file
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func splitList(s string) []string {
	var out []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

// project applies a randomly initialized linear head to the sequence
// encoding. Unmerged directions are concatenated first.
func project(outputs []*tensor.Tensor[float32, *Backend], classes int, rng *rand.Rand, backend *Backend) *tensor.Tensor[float32, *Backend] {
	features := outputs[0]
	if len(outputs) > 1 {
		features = tensor.Cat(outputs, -1)
		defer features.Release()
	}
	head := nn.NewLinear(features.Shape()[1], classes, rng, backend)
	defer func() {
		for _, p := range head.Parameters() {
			p.Release()
		}
	}()
	return head.Forward(features)
}
