package kea

import (
	"fmt"
	"strings"
)

// connectStep builds every declared dependency and imports the requested
// actions and selectors. Dependencies are built (not mounted) here; they
// are mounted with the dependent.
func connectStep(l *Logic, in *Input, bc *BuildContext) error {
	for i, c := range in.Connect {
		if c.Logic == nil {
			return &Error{Code: ErrCodeUnresolvedConnection, Message: fmt.Sprintf("connect[%d] has no logic", i)}
		}

		target := c.Logic.input
		switch {
		case c.KeyFunc != nil:
			target = target.WithKey(c.KeyFunc(bc.Props))
		case c.Key != nil:
			target = target.WithKey(c.Key)
		}

		dep, err := bc.Runtime.getOrBuild(target, bc.Props)
		if err != nil {
			return &Error{
				Code:    ErrCodeUnresolvedConnection,
				Message: fmt.Sprintf("connect[%d]: cannot build %s", i, bc.Runtime.describe(target.root())),
				Cause:   err,
			}
		}
		if _, seen := l.Connections[dep.ID]; !seen {
			l.deps = append(l.deps, dep)
		}
		l.Connections[dep.ID] = dep

		for _, entry := range c.Actions {
			name, alias := parseImport(entry)
			ac, ok := dep.ActionCreators[name]
			if !ok {
				return &Error{Code: ErrCodeUnresolvedConnection, Message: fmt.Sprintf("%s has no action %q", dep.ID, name)}
			}
			l.ActionCreators[alias] = ac
		}
		for _, entry := range c.Selectors {
			name, alias := parseImport(entry)
			sel, ok := dep.Selectors[name]
			if !ok {
				return &Error{Code: ErrCodeUnresolvedConnection, Message: fmt.Sprintf("%s has no selector %q", dep.ID, name)}
			}
			l.Selectors[alias] = sel
		}
	}
	return nil
}

// parseImport splits "name as alias". A bare name imports as itself.
func parseImport(entry string) (name, alias string) {
	fields := strings.Fields(entry)
	if len(fields) == 3 && fields[1] == "as" {
		return fields[0], fields[2]
	}
	return strings.TrimSpace(entry), strings.TrimSpace(entry)
}
