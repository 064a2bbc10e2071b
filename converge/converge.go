// Package converge drives the fixed-point loop that runs a type's explorer
// and manifest for every discovered object until no new objects appear.
package converge

import (
	"context"
	"fmt"

	"cdist/cdisttype"
	"cdist/object"
)

// TypeLoader resolves a type name to its loaded Type, typically caching the
// result for the lifetime of a run.
type TypeLoader func(typeName string) (*cdisttype.Type, error)

// ExplorerRunner and ManifestRunner are the two side effects the loop
// drives per object; satisfied by *explorer.Engine and *manifest.Engine
// respectively (kept as narrow interfaces here so converge has no import
// dependency on either).
type ExplorerRunner interface {
	RunType(ctx context.Context, typ *cdisttype.Type, obj object.ID) error
}

type ManifestRunner interface {
	RunType(ctx context.Context, typ *cdisttype.Type, obj object.ID) error
}

// ObjectLister is the object store's listing capability.
type ObjectLister interface {
	List() ([]object.ID, error)
}

// NotConvergedError is returned when the loop exceeds its pass bound
// without the object set stabilizing, guarding against a manifest that
// never stops creating new objects.
type NotConvergedError struct {
	MaxPasses int
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("convergence did not stabilize after %d passes", e.MaxPasses)
}

// Run executes the fixed-point loop and returns the final, stable object
// set in the order it was first prepared.
func Run(ctx context.Context, store ObjectLister, explorers ExplorerRunner, manifests ManifestRunner, loadType TypeLoader, maxPasses int) ([]object.ID, error) {
	prepared := make(map[object.ID]bool)
	var order []object.ID

	for pass := 0; pass < maxPasses; pass++ {
		snapshot, err := store.List()
		if err != nil {
			return nil, fmt.Errorf("converge: listing objects: %w", err)
		}

		grew := false
		for _, obj := range snapshot {
			if prepared[obj] {
				continue
			}
			typ, err := loadType(obj.Type)
			if err != nil {
				return nil, fmt.Errorf("converge: loading type %s: %w", obj.Type, err)
			}

			if err := explorers.RunType(ctx, typ, obj); err != nil {
				return nil, err
			}
			if err := manifests.RunType(ctx, typ, obj); err != nil {
				return nil, err
			}

			prepared[obj] = true
			order = append(order, obj)
			grew = true
		}

		if !grew {
			return order, nil
		}
	}

	return order, &NotConvergedError{MaxPasses: maxPasses}
}
