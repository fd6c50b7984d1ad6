// Package script evaluates per-feature expressions used by filter
// properties such as colors and extrusion heights.
package script

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/model"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/props"
)

// Engine runs src with the feature and the per-run property bag in
// scope. Implementations must be safe for concurrent use.
type Engine interface {
	Run(ctx context.Context, src string, f *model.Feature, vars *props.Bag) (Result, error)
}

var (
	ErrCompile = errors.New("script: compile failed")
	ErrRuntime = errors.New("script: runtime error")
	ErrCoerce  = errors.New("script: result cannot be coerced")
)

type resultKind int

const (
	resultNil resultKind = iota
	resultString
	resultNumber
	resultBool
	resultVector
)

// Result is the value returned by a script.
type Result struct {
	kind resultKind
	s    string
	n    float64
	b    bool
	v    []float64
}

func StringResult(s string) Result    { return Result{kind: resultString, s: s} }
func NumberResult(n float64) Result   { return Result{kind: resultNumber, n: n} }
func BoolResult(b bool) Result        { return Result{kind: resultBool, b: b} }
func VectorResult(v []float64) Result { return Result{kind: resultVector, v: v} }

func (r Result) IsNil() bool { return r.kind == resultNil }

func (r Result) String() string {
	switch r.kind {
	case resultString:
		return r.s
	case resultNumber:
		return strconv.FormatFloat(r.n, 'g', -1, 64)
	case resultBool:
		return strconv.FormatBool(r.b)
	case resultVector:
		parts := make([]string, len(r.v))
		for i, f := range r.v {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	}
	return ""
}

func (r Result) Number() (float64, error) {
	switch r.kind {
	case resultNumber:
		return r.n, nil
	case resultBool:
		if r.b {
			return 1, nil
		}
		return 0, nil
	case resultString:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q to number", ErrCoerce, r.s)
		}
		return f, nil
	case resultVector:
		if len(r.v) > 0 {
			return r.v[0], nil
		}
	}
	return 0, fmt.Errorf("%w: nil to number", ErrCoerce)
}

func (r Result) Vector() ([]float64, error) {
	switch r.kind {
	case resultVector:
		return append([]float64(nil), r.v...), nil
	case resultNumber:
		return []float64{r.n}, nil
	case resultString:
		v, err := props.String(r.s).AsVec()
		if err != nil {
			return nil, fmt.Errorf("%w: %q to vector", ErrCoerce, r.s)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: to vector", ErrCoerce)
}
