package codestage

import "cdist/object"

// RequireLookup resolves an object's declared dependencies, as fully
// qualified "<type>/<object_id>" strings.
type RequireLookup func(obj object.ID) ([]string, error)

// BuildOrder computes a single linear order over objects such that every
// object appears after everything it requires, via depth-first traversal
// with a per-traversal visiting set for cycle detection.
func BuildOrder(objects []object.ID, require RequireLookup) ([]object.ID, error) {
	byFQ := make(map[string]object.ID, len(objects))
	for _, obj := range objects {
		byFQ[obj.FQ()] = obj
	}

	var (
		order    []object.ID
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
		chain    []string
	)

	var visit func(obj object.ID) error
	visit = func(obj object.ID) error {
		fq := obj.FQ()
		if done[fq] {
			return nil
		}
		if visiting[fq] {
			return &CycleError{Chain: append(append([]string{}, chain...), fq)}
		}

		visiting[fq] = true
		chain = append(chain, fq)

		deps, err := require(obj)
		if err != nil {
			return err
		}
		for _, depFQ := range deps {
			dep, ok := byFQ[depFQ]
			if !ok {
				// A require naming an object outside this run's set is not
				// this pass's concern; ordering only applies to known
				// objects.
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		chain = chain[:len(chain)-1]
		visiting[fq] = false
		done[fq] = true
		order = append(order, obj)
		return nil
	}

	for _, obj := range objects {
		if err := visit(obj); err != nil {
			return nil, err
		}
	}

	return order, nil
}
