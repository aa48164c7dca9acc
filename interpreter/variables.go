package interpreter

import (
	"github.com/dogmatiq/flowstate/persistence"
)

// visible returns the variables visible to x.
//
// Each scope on the path from x to the root contributes its variables. Where
// scopes define the same variable, the nearest scope wins.
func (r *run) visible(x *persistence.Execution) (map[string]any, error) {
	chain, err := r.ancestors(x)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{}

	for i := len(chain) - 1; i >= 0; i-- {
		if s := chain[i]; s.IsScope {
			for k, v := range s.Variables {
				vars[k] = v
			}
		}
	}

	return vars, nil
}

// nearestScope returns x if it is a scope, otherwise its nearest scope
// ancestor.
func (r *run) nearestScope(x *persistence.Execution) (*persistence.Execution, error) {
	for !x.IsScope {
		p, err := r.parent(x)
		if err != nil {
			return nil, err
		}
		x = p
	}

	return x, nil
}

// setVariables assigns variables in the nearest scope of x.
func (r *run) setVariables(x *persistence.Execution, vars map[string]any) error {
	if len(vars) == 0 {
		return nil
	}

	s, err := r.nearestScope(x)
	if err != nil {
		return err
	}

	if s.Variables == nil {
		s.Variables = map[string]any{}
	}

	for k, v := range vars {
		s.Variables[k] = v
	}

	return r.update(s)
}
