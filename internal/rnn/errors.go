package rnn

import (
	"errors"
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Sentinel errors. The typed errors below match them via errors.Is, so
// callers can branch on the category without caring about the details.
var (
	// ErrInputRank is returned when a sequence input has rank below 3.
	ErrInputRank = errors.New("rnn: input rank too low")

	// ErrStateMismatch is returned when state count or shape disagrees with a cell's state size.
	ErrStateMismatch = errors.New("rnn: state mismatch")

	// ErrShape is returned for incompatible input, mask or merge shapes.
	ErrShape = errors.New("rnn: shape mismatch")

	// ErrNotImplemented is returned for recognized but unsupported options
	// such as constants or unrolling.
	ErrNotImplemented = errors.New("rnn: not implemented")

	// ErrNotStateful is returned when state access is attempted on a non-stateful layer.
	ErrNotStateful = errors.New("rnn: layer is not stateful")

	// ErrInvalidConfig is returned for invalid layer or cell configuration.
	ErrInvalidConfig = errors.New("rnn: invalid configuration")
)

// InputRankError reports a sequence input below the minimum rank.
type InputRankError struct {
	Op      string
	Shape   tensor.Shape
	MinRank int
}

func (e *InputRankError) Error() string {
	return fmt.Sprintf("%s: input should have rank >= %d ([batch, time, features...]), got rank %d with shape %v",
		e.Op, e.MinRank, len(e.Shape), e.Shape)
}

// Is reports whether target is ErrInputRank.
func (e *InputRankError) Is(target error) bool {
	return target == ErrInputRank
}

// StateError reports a state count or state shape mismatch.
//
// Count mismatches have Index == -1 and set ExpectedCount/ReceivedCount;
// shape mismatches name the offending component and both shapes.
type StateError struct {
	Op            string
	Index         int
	ExpectedCount int
	ReceivedCount int
	Expected      tensor.Shape
	Received      tensor.Shape
}

func (e *StateError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: expected %d state(s) but was passed %d state(s)",
			e.Op, e.ExpectedCount, e.ReceivedCount)
	}
	return fmt.Sprintf("%s: state %d has shape %v, expected %v", e.Op, e.Index, e.Received, e.Expected)
}

// Is reports whether target is ErrStateMismatch.
func (e *StateError) Is(target error) bool {
	return target == ErrStateMismatch
}

func stateCountError(op string, expected, received int) *StateError {
	return &StateError{Op: op, Index: -1, ExpectedCount: expected, ReceivedCount: received}
}

func stateShapeError(op string, index int, expected, received tensor.Shape) *StateError {
	return &StateError{
		Op:       op,
		Index:    index,
		Expected: expected.Clone(),
		Received: received.Clone(),
	}
}

// ShapeError reports incompatible input, mask or output shapes.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return e.Op + ": " + e.Msg
}

// Is reports whether target is ErrShape.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

func shapeErrorf(op, format string, args ...any) *ShapeError {
	return &ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Op    string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Field, e.Msg)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func notImplemented(op, feature string) error {
	return fmt.Errorf("%s: %s: %w", op, feature, ErrNotImplemented)
}

func notStateful(op string) error {
	return fmt.Errorf("%s: %w; construct it with Stateful: true", op, ErrNotStateful)
}
