package pipeline

import (
	"fmt"

	"github.com/traitcapture/timestream/internal/errs"
)

// Executor runs an ordered stage list over a shared context for one
// frame at a time. The first stage receives the frame as its sole
// positional input; each subsequent stage receives exactly the
// positional outputs of its predecessor.
type Executor struct {
	stages []Stage
}

// NewExecutor builds an executor over the given stages, validating that
// adjacent contracts line up: each stage's declared input sequence must
// match its predecessor's declared outputs, so mismatches surface at
// composition time rather than mid-run.
func NewExecutor(stages ...Stage) (*Executor, error) {
	for i := 1; i < len(stages); i++ {
		prev, cur := stages[i-1], stages[i]
		if err := matchTypes(cur.Name(), prev.Returns(), cur.Expects()); err != nil {
			return nil, err
		}
	}
	return &Executor{stages: stages}, nil
}

// Stages returns the ordered stage list.
func (e *Executor) Stages() []Stage { return e.stages }

// Run passes the frame through the stage list, asserting each stage's
// declared arity and types at its boundary. A stage failure abandons
// the frame: no later stage runs and no partial outputs escape.
func (e *Executor) Run(ctx *Context, frame interface{}) (Values, error) {
	in := Values{frame}
	for _, st := range e.stages {
		if len(in) != len(st.Expects()) {
			return nil, errs.Contractf(st.Name(), "got %d inputs, schema declares %d\n%s",
				len(in), len(st.Expects()), DescribeStage(st))
		}
		if err := checkValues(st.Name(), st.Expects(), in); err != nil {
			return nil, err
		}

		tracef("running stage %s", st.Name())
		out, err := st.Run(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", st.Name(), err)
		}

		if len(out) != len(st.Returns()) {
			return nil, errs.Contractf(st.Name(), "returned %d outputs, schema declares %d\n%s",
				len(out), len(st.Returns()), DescribeStage(st))
		}
		if err := checkValues(st.Name(), st.Returns(), out); err != nil {
			return nil, err
		}
		in = out
	}
	return in, nil
}

// checkValues asserts each value against its declared type descriptor.
// A *errs.ResolutionError passes any slot: it is the sentinel that
// travels in place of an unresolvable frame so stages can special-case
// it.
func checkValues(stage string, want []string, vals Values) error {
	for i, v := range vals {
		if _, ok := v.(*errs.ResolutionError); ok {
			continue
		}
		got := fmt.Sprintf("%T", v)
		if got != want[i] {
			return errs.Contractf(stage, "value %d is %s, schema declares %s", i, got, want[i])
		}
	}
	return nil
}

// matchTypes compares two declared type sequences at composition time.
func matchTypes(stage string, produced, expected []string) error {
	if len(produced) != len(expected) {
		return errs.Configf(stage, "expects %d inputs but previous stage produces %d", len(expected), len(produced))
	}
	for i := range produced {
		if produced[i] != expected[i] {
			return errs.Configf(stage, "expects %s at position %d but previous stage produces %s",
				expected[i], i, produced[i])
		}
	}
	return nil
}
