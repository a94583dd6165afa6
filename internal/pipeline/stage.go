// Package pipeline provides the component-contract execution engine:
// typed processing stages run in declared order over a shared context,
// with input/output arity and type validation at every stage boundary,
// plus the per-series driver with cooperative cancellation.
package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/traitcapture/timestream/internal/errs"
)

// Values is the positional value sequence passed between stages.
type Values []interface{}

// ArgSpec describes one construction parameter of a stage.
type ArgSpec struct {
	Required bool
	Desc     string
	// Default applies when an optional argument is omitted.
	Default interface{}
}

// Schema maps argument names to their specs.
type Schema map[string]ArgSpec

// Stage is one processing step. Expects and Returns declare the
// positional input/output type sequences as type descriptor strings
// (the %T rendering of the value, e.g. "*archive.Frame"); the executor
// asserts them at each boundary.
type Stage interface {
	// Name returns the stage's unique name.
	Name() string
	// Args returns the stage's parameter schema.
	Args() Schema
	// Expects returns the declared input type sequence.
	Expects() []string
	// Returns returns the declared output type sequence.
	Returns() []string
	// Run executes the stage over the shared context and the
	// positional outputs of the previous stage.
	Run(ctx *Context, in Values) (Values, error)
}

// ApplyArgs validates args against the schema, filling defaults for
// omitted optional parameters. A missing required parameter is a
// configuration error naming the stage and its documented schema.
func ApplyArgs(stage string, schema Schema, args map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for name, spec := range schema {
		v, ok := args[name]
		if !ok {
			if spec.Required {
				return nil, errs.Configf(stage, "missing required argument %q\n%s", name, DescribeSchema(stage, schema))
			}
			out[name] = spec.Default
			continue
		}
		out[name] = v
	}
	for name := range args {
		if _, ok := schema[name]; !ok {
			return nil, errs.Configf(stage, "unknown argument %q\n%s", name, DescribeSchema(stage, schema))
		}
	}
	return out, nil
}

// DescribeSchema renders a stage's documented parameter schema, used in
// configuration errors and the CLI's component documentation output.
func DescribeSchema(stage string, schema Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n  (arguments)\n", stage)
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := schema[name]
		kind := "optional"
		if spec.Required {
			kind = "required"
		}
		fmt.Fprintf(&b, "    %s (%s): %s\n", name, kind, spec.Desc)
	}
	return b.String()
}

// DescribeStage renders a stage's full contract for documentation.
func DescribeStage(s Stage) string {
	var b strings.Builder
	b.WriteString(DescribeSchema(s.Name(), s.Args()))
	fmt.Fprintf(&b, "  (receives)\n")
	for _, t := range s.Expects() {
		fmt.Fprintf(&b, "    %s\n", t)
	}
	fmt.Fprintf(&b, "  (returns)\n")
	for _, t := range s.Returns() {
		fmt.Fprintf(&b, "    %s\n", t)
	}
	return b.String()
}
