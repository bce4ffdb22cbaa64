package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// A cue.Context is not safe for concurrent use, so the schema and every
// value derived from it are guarded by schemaMu.
var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	cueCtx     *cue.Context
	configDef  cue.Value
	schemaErr  error
)

func loadSchema() error {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		v := cueCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", formatCUEError(err))
			return
		}
		configDef = v.LookupPath(cue.ParsePath("#Config"))
		if err := configDef.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Config: %w", formatCUEError(err))
		}
	})
	return schemaErr
}

// validateAndDecode checks a config value (a generic tree or a Spec)
// against #Config and decodes the unified value into a Spec.
func validateAndDecode(x any) (Spec, error) {
	if err := loadSchema(); err != nil {
		return Spec{}, err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := cueCtx.Encode(x)
	if err := v.Err(); err != nil {
		return Spec{}, formatCUEError(err)
	}

	unified := configDef.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Spec{}, formatCUEError(err)
	}

	data, err := unified.MarshalJSON()
	if err != nil {
		return Spec{}, formatCUEError(err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("decode config: %w", err)
	}
	return spec, nil
}

// compileCUE evaluates a .cue config file into a generic tree.
func compileCUE(data []byte, filename string) (map[string]any, error) {
	if err := loadSchema(); err != nil {
		return nil, err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	v := cueCtx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return parseJSONTree(data)
}

// formatCUEError flattens a CUE error list into one error carrying every
// message with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		if pos := cueerrors.Positions(e); len(pos) > 0 && pos[0].IsValid() {
			msg = fmt.Sprintf("%s: %s", pos[0], msg)
		}
		msgs = append(msgs, msg)
	}
	return &ValidationError{Problems: msgs}
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid config: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid config (%d problems):\n  %s", len(e.Problems), strings.Join(e.Problems, "\n  "))
}
