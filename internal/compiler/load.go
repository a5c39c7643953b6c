package compiler

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/cyrke/kea/internal/ir"
)

// LoadFiles compiles each CUE file and unifies them into one value. Files
// are standalone: no package or import resolution.
func LoadFiles(paths ...string) (cue.Value, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString("{}")
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		root = root.Unify(v)
	}
	if err := root.Validate(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return root, nil
}

// Specs compiles and validates every logic under root. Any compile or
// validation error fails the whole set.
func Specs(root cue.Value) ([]*ir.LogicSpec, error) {
	specs, compileErrs := CompileAll(root)
	if len(compileErrs) > 0 {
		return nil, errors.Join(compileErrs...)
	}
	verrs := ValidateAll(specs)
	if len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}
	return specs, nil
}
