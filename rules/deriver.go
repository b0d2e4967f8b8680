package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds CEL evaluation so a derived-field expression cannot run away
const costLimit = 1000000

// Deriver compiles and evaluates derived-field expressions.
// Safe for concurrent use; compiled programs are cached per expression.
type Deriver struct {
	env      *cel.Env
	programs map[string]cel.Program // expression -> compiled program
	mu       sync.RWMutex
}

// NewDeriver creates a Deriver whose CEL environment declares every supported
// payload field as a dynamic variable
func NewDeriver() (*Deriver, error) {
	opts := make([]cel.EnvOption, 0, len(supportedFields)+1)
	opts = append(opts, cel.CrossTypeNumericComparisons(true))
	for field := range supportedFields {
		opts = append(opts, cel.Variable(field, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Deriver{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile checks and caches an expression
func (d *Deriver) Compile(expression string) error {
	_, err := d.program(expression)
	return err
}

// Validate lists the problems of a derived-field definition
func (d *Deriver) Validate(field DerivedField) []string {
	var problems []string
	if !IsSupportedField(field.Name) {
		problems = append(problems, fmt.Sprintf("derived field %q is not a supported field", field.Name))
	}
	if field.Expression == "" {
		problems = append(problems, fmt.Sprintf("derived field %q has no expression", field.Name))
	} else if err := d.Compile(field.Expression); err != nil {
		problems = append(problems, fmt.Sprintf("derived field %q: %v", field.Name, err))
	}
	return problems
}

func (d *Deriver) program(expression string) (cel.Program, error) {
	d.mu.RLock()
	prog, ok := d.programs[expression]
	d.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := d.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := d.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	d.mu.Lock()
	d.programs[expression] = prog
	d.mu.Unlock()

	return prog, nil
}

// Apply returns a copy of data with derived fields filled in. Fields already
// present in data are never overwritten; an expression that fails to compile or
// evaluate is skipped. Later fields see the values of earlier ones.
func (d *Deriver) Apply(fields []DerivedField, data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+len(fields))
	for k, v := range data {
		out[k] = v
	}
	if d == nil || len(fields) == 0 {
		return out
	}

	for _, field := range fields {
		if _, exists := out[field.Name]; exists {
			continue
		}
		prog, err := d.program(field.Expression)
		if err != nil {
			continue
		}

		activation := make(map[string]any, len(out))
		for k, v := range out {
			activation[k] = ValueOf(v).Native()
		}

		val, _, err := prog.Eval(activation)
		if err != nil {
			continue
		}
		out[field.Name] = val.Value()
	}
	return out
}
