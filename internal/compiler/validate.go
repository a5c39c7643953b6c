package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cyrke/kea/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// LogicSpec errors (E101-E109)
	ErrInvalidName        = "E101" // logic, action, reducer or selector name
	ErrDuplicateName      = "E102" // duplicate action/reducer/selector name
	ErrUnknownAction      = "E103" // reducer or listener references an unknown action
	ErrInvalidOp          = "E104" // unknown reducer op
	ErrOpMissingField     = "E105" // op needs a payload field
	ErrUnknownInput       = "E106" // selector input is not a reducer or selector
	ErrInvalidSelectorFn  = "E107" // unknown selector function or bad arity
	ErrInvalidPath        = "E108" // empty path segment
	ErrInvalidType        = "E109" // invalid or float type declaration

	// Connection errors (E110-E119)
	ErrConnectMissingLogic = "E110" // connect entry without a logic name
	ErrConnectUnknownLogic = "E111" // connect names a logic that is not defined
	ErrConnectCycle        = "E112" // logics connect to each other in a cycle
	ErrConnectKeyConflict  = "E113" // both key and key_prop set
	ErrInvalidImport       = "E114" // malformed "name as alias" entry
	ErrInvalidListener     = "E115" // listener dispatches an unknown action
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates one compiled logic.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.LogicSpec:
		return validateLogicSpec(spec)
	case ir.LogicSpec:
		return validateLogicSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateAll validates every logic and the connections between them.
func ValidateAll(specs []*ir.LogicSpec) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool, len(specs))
	for _, spec := range specs {
		for _, e := range validateLogicSpec(spec) {
			e.Field = spec.Name + "." + e.Field
			errs = append(errs, e)
		}
		if names[spec.Name] {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Message: fmt.Sprintf("duplicate logic name: %q", spec.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[spec.Name] = true
	}

	for _, spec := range specs {
		for i, c := range spec.Connect {
			if c.Logic != "" && !names[c.Logic] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.connect[%d].logic", spec.Name, i),
					Message: fmt.Sprintf("unknown logic %q", c.Logic),
					Code:    ErrConnectUnknownLogic,
				})
			}
		}
	}

	for _, cycle := range AnalyzeConnections(specs) {
		errs = append(errs, ValidationError{
			Field:   strings.Join(cycle.Path, "."),
			Message: cycle.Message,
			Code:    ErrConnectCycle,
		})
	}
	return errs
}

// namePattern matches identifiers usable as action and key names.
var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validateLogicSpec(spec *ir.LogicSpec) []ValidationError {
	var errs []ValidationError

	// E101: logic name
	if !namePattern.MatchString(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid logic name %q", spec.Name),
			Code:    ErrInvalidName,
		})
	}

	// E108: path segments
	for i, seg := range spec.Path {
		if strings.TrimSpace(seg) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("path[%d]", i),
				Message: "path segments must be non-empty",
				Code:    ErrInvalidPath,
			})
		}
	}

	// Actions visible to reducers and listeners: local plus connected aliases.
	actions := make(map[string]bool)
	for i, a := range spec.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		errs = append(errs, checkName(field, a.Name)...)
		if actions[a.Name] {
			errs = append(errs, dup(field, "action", a.Name))
		}
		actions[a.Name] = true
	}

	selectors := make(map[string]bool)
	for i, c := range spec.Connect {
		field := fmt.Sprintf("connect[%d]", i)
		if strings.TrimSpace(c.Logic) == "" {
			errs = append(errs, ValidationError{Field: field + ".logic", Message: "logic is required", Code: ErrConnectMissingLogic})
		}
		if c.Key != "" && c.KeyProp != "" {
			errs = append(errs, ValidationError{Field: field, Message: "key and key_prop are mutually exclusive", Code: ErrConnectKeyConflict})
		}
		for j, entry := range c.Actions {
			alias, err := importAlias(entry)
			if err != nil {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.actions[%d]", field, j), Message: err.Error(), Code: ErrInvalidImport})
				continue
			}
			if actions[alias] {
				errs = append(errs, dup(fmt.Sprintf("%s.actions[%d]", field, j), "action", alias))
			}
			actions[alias] = true
		}
		for j, entry := range c.Selectors {
			alias, err := importAlias(entry)
			if err != nil {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("%s.selectors[%d]", field, j), Message: err.Error(), Code: ErrInvalidImport})
				continue
			}
			selectors[alias] = true
		}
	}

	for i, r := range spec.Reducers {
		field := fmt.Sprintf("reducers[%d]", i)
		errs = append(errs, checkName(field, r.Name)...)
		if selectors[r.Name] {
			errs = append(errs, dup(field, "selector", r.Name))
		}
		selectors[r.Name] = true
		errs = append(errs, validateType(field+".type", r.Type)...)

		for _, action := range ir.SortedKeys(r.On) {
			op := r.On[action]
			opField := fmt.Sprintf("%s.on.%s", field, action)
			if !actions[action] {
				errs = append(errs, ValidationError{Field: opField, Message: fmt.Sprintf("unknown action %q", action), Code: ErrUnknownAction})
			}
			if !ir.ValidOps[op.Op] {
				errs = append(errs, ValidationError{Field: opField + ".op", Message: fmt.Sprintf("unknown op %q", op.Op), Code: ErrInvalidOp})
				continue
			}
			if (op.Op == "set" || op.Op == "append") && op.Field == "" {
				errs = append(errs, ValidationError{Field: opField + ".field", Message: fmt.Sprintf("op %q requires a payload field", op.Op), Code: ErrOpMissingField})
			}
		}
	}

	for i, s := range spec.Selectors {
		field := fmt.Sprintf("selectors[%d]", i)
		errs = append(errs, checkName(field, s.Name)...)
		if selectors[s.Name] {
			errs = append(errs, dup(field, "selector", s.Name))
		}
		selectors[s.Name] = true
		errs = append(errs, validateType(field+".type", s.Type)...)
		if err := selectorArity(s.Fn, len(s.Inputs)); err != nil {
			errs = append(errs, ValidationError{Field: field + ".fn", Message: err.Error(), Code: ErrInvalidSelectorFn})
		}
	}
	// Inputs may reference selectors declared later, so check after collecting all.
	for i, s := range spec.Selectors {
		for j, input := range s.Inputs {
			if !selectors[input] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("selectors[%d].inputs[%d]", i, j),
					Message: fmt.Sprintf("unknown input %q", input),
					Code:    ErrUnknownInput,
				})
			}
		}
	}

	for _, action := range ir.SortedKeys(spec.Listeners) {
		field := "listeners." + action
		if !actions[action] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("unknown action %q", action), Code: ErrUnknownAction})
		}
		for i, l := range spec.Listeners[action] {
			if !actions[l.Dispatch] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d].dispatch", field, i),
					Message: fmt.Sprintf("cannot dispatch unknown action %q", l.Dispatch),
					Code:    ErrInvalidListener,
				})
			}
		}
	}

	return errs
}

func checkName(field, name string) []ValidationError {
	if namePattern.MatchString(name) {
		return nil
	}
	return []ValidationError{{Field: field + ".name", Message: fmt.Sprintf("invalid name %q", name), Code: ErrInvalidName}}
}

func dup(field, kind, name string) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("duplicate %s name: %q", kind, name), Code: ErrDuplicateName}
}

// importAlias returns the local name an import entry binds.
func importAlias(entry string) (string, error) {
	fields := strings.Fields(entry)
	switch {
	case len(fields) == 1 && namePattern.MatchString(fields[0]):
		return fields[0], nil
	case len(fields) == 3 && fields[1] == "as" && namePattern.MatchString(fields[0]) && namePattern.MatchString(fields[2]):
		return fields[2], nil
	}
	return "", fmt.Errorf("invalid import %q, expected \"name\" or \"name as alias\"", entry)
}

// validateType checks an optional runtime type declaration.
func validateType(field, t string) []ValidationError {
	if t == "" || isValidType(t) {
		return nil
	}
	if isFloatType(t) {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("float type %q forbidden, use int instead", t), Code: ErrInvalidType}}
	}
	return []ValidationError{{Field: field, Message: fmt.Sprintf("invalid type %q", t), Code: ErrInvalidType}}
}

// isValidType checks if a type string is valid.
func isValidType(t string) bool {
	validTypes := map[string]bool{
		"string": true,
		"int":    true,
		"bool":   true,
		"array":  true,
		"object": true,
	}
	return validTypes[t]
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	floatTypes := map[string]bool{
		"float":   true,
		"float32": true,
		"float64": true,
		"number":  true,
		"double":  true,
	}
	return floatTypes[t]
}
