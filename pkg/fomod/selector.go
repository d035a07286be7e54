package fomod

import (
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

// AutoSelector resolves groups without user interaction. Explicitly
// requested options win; otherwise exactly-one and at-most-one groups
// take the first recommended option, falling back to the first
// candidate, and any-number groups take every recommended option.
type AutoSelector struct {
	// Choices maps a group name (matched case-insensitively) to the
	// option names to select in that group.
	Choices map[string][]string
}

func (s *AutoSelector) Select(step string, group *Group, candidates []*Option) ([]*Option, error) {
	if explicit := s.lookup(group.Name); len(explicit) > 0 {
		return matchByName(step, group, candidates, explicit)
	}

	switch group.Type {
	case SelectExactlyOne, SelectAtMostOne:
		for _, option := range candidates {
			if option.Type == TypeRecommended {
				return []*Option{option}, nil
			}
		}
		return []*Option{candidates[0]}, nil

	case SelectAny:
		var chosen []*Option
		for _, option := range candidates {
			if option.Type == TypeRecommended {
				chosen = append(chosen, option)
			}
		}
		return chosen, nil
	}

	return nil, nil
}

func (s *AutoSelector) lookup(group string) []string {
	for name, options := range s.Choices {
		if strings.EqualFold(name, group) {
			return options
		}
	}
	return nil
}

func matchByName(step string, group *Group, candidates []*Option, names []string) ([]*Option, error) {
	var chosen []*Option
	for _, name := range names {
		var found *Option
		for _, option := range candidates {
			if strings.EqualFold(option.Name, name) {
				found = option
				break
			}
		}
		if found == nil {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"option %q is not available in group %q", name, group.Name).
				WithDetail("step", step)
		}
		chosen = append(chosen, found)
	}
	return chosen, nil
}
