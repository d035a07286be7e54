package fomod

import (
	"sort"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
)

// Selector chooses options for one group during evaluation. The
// candidates are the group's visible, usable options and every returned
// option must come from that slice. Selection discipline is enforced by
// the evaluator, not the selector.
type Selector interface {
	Select(step string, group *Group, candidates []*Option) ([]*Option, error)
}

// Evaluate runs the script against a selector and produces the install
// plan. Steps are evaluated strictly in order. Conditions may only
// reference flags declared by options of strictly earlier steps;
// forward or unknown references fail before any selection is made.
func Evaluate(cfg *ModuleConfig, sel Selector) (*Plan, error) {
	logger := logging.GetLogger("fomod")

	if err := validateFlagScope(cfg); err != nil {
		return nil, err
	}

	state := make(map[string]string)
	var candidates []FileMapping
	var selections []Selection

	candidates = append(candidates, cfg.RequiredFiles...)

	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if !evalCondition(step.Visible, state) {
			logger.Debug().Str("step", step.Name).Msg("Step hidden, skipping")
			continue
		}

		for j := range step.Groups {
			group := &step.Groups[j]
			selected, err := resolveGroup(step, group, state, sel)
			if err != nil {
				return nil, err
			}

			selection := Selection{Step: step.Name, Group: group.Name}
			for _, option := range selected {
				selection.Options = append(selection.Options, option.Name)
				candidates = append(candidates, option.Files...)
				for _, flag := range option.Flags {
					state[flag.Name] = flag.Value
				}
			}
			selections = append(selections, selection)
		}
	}

	for _, install := range cfg.ConditionalInstalls {
		if evalCondition(install.When, state) {
			candidates = append(candidates, install.Files...)
		}
	}

	plan := &Plan{
		Mappings:   resolveMappings(candidates),
		Flags:      state,
		Selections: selections,
	}

	logger.Debug().
		Str("module", cfg.Name).
		Int("mappings", len(plan.Mappings)).
		Int("flags", len(plan.Flags)).
		Msg("Evaluated installer script")

	return plan, nil
}

// resolveGroup computes the selected options of one group, consulting
// the selector only where the script leaves a real choice.
func resolveGroup(step *InstallStep, group *Group, state map[string]string, sel Selector) ([]*Option, error) {
	var candidates []*Option
	for k := range group.Options {
		option := &group.Options[k]
		if option.Type == TypeNotUsable || !evalCondition(option.Visible, state) {
			continue
		}
		candidates = append(candidates, option)
	}

	var required []*Option
	for _, option := range candidates {
		if option.Type == TypeRequired {
			required = append(required, option)
		}
	}

	switch group.Type {
	case SelectAll:
		if len(candidates) == 0 {
			return nil, noQualifyingOption(step, group)
		}
		return candidates, nil

	case SelectExactlyOne, SelectAtMostOne:
		if len(candidates) == 0 {
			if group.Type == SelectExactlyOne {
				return nil, noQualifyingOption(step, group)
			}
			return nil, nil
		}
		if len(required) > 1 {
			return nil, errors.Newf(errors.ErrMalformedScript,
				"group %q requires %d options but allows only one", group.Name, len(required))
		}
		if len(required) == 1 {
			return required, nil
		}

		chosen, err := sel.Select(step.Name, group, candidates)
		if err != nil {
			return nil, err
		}
		chosen, err = checkMembership(step, group, candidates, chosen)
		if err != nil {
			return nil, err
		}
		if len(chosen) > 1 || (group.Type == SelectExactlyOne && len(chosen) != 1) {
			return nil, errors.Newf(errors.ErrInvalidInput,
				"group %q needs %s selection, got %d",
				group.Name, disciplineWord(group.Type), len(chosen)).
				WithDetail("step", step.Name)
		}
		return chosen, nil

	case SelectAny:
		var chosen []*Option
		if len(candidates) > 0 {
			var err error
			chosen, err = sel.Select(step.Name, group, candidates)
			if err != nil {
				return nil, err
			}
			chosen, err = checkMembership(step, group, candidates, chosen)
			if err != nil {
				return nil, err
			}
		}
		// Required options are included whether or not the selector
		// named them.
		for _, option := range required {
			found := false
			for _, picked := range chosen {
				if picked == option {
					found = true
					break
				}
			}
			if !found {
				chosen = append(chosen, option)
			}
		}
		return chosen, nil
	}

	return nil, errors.Newf(errors.ErrMalformedScript, "unknown group type %q", group.Type)
}

func disciplineWord(t GroupType) string {
	if t == SelectExactlyOne {
		return "exactly one"
	}
	return "at most one"
}

func noQualifyingOption(step *InstallStep, group *Group) error {
	return errors.Newf(errors.ErrNoQualifyingOption,
		"group %q has no selectable options", group.Name).
		WithDetail("step", step.Name).
		WithDetail("group", group.Name)
}

// checkMembership verifies the selector only returned candidates, and
// drops duplicates while preserving order.
func checkMembership(step *InstallStep, group *Group, candidates, chosen []*Option) ([]*Option, error) {
	seen := make(map[*Option]bool, len(chosen))
	var result []*Option
	for _, option := range chosen {
		member := false
		for _, candidate := range candidates {
			if option == candidate {
				member = true
				break
			}
		}
		if !member {
			name := "<nil>"
			if option != nil {
				name = option.Name
			}
			return nil, errors.Newf(errors.ErrInvalidInput,
				"option %q is not available in group %q", name, group.Name).
				WithDetail("step", step.Name)
		}
		if !seen[option] {
			seen[option] = true
			result = append(result, option)
		}
	}
	return result, nil
}

// evalCondition evaluates a condition against the current flag state.
// A nil or empty condition holds. A flag that no selected option has
// set compares unequal to every expected value.
func evalCondition(c *Condition, state map[string]string) bool {
	if c.Empty() {
		return true
	}

	results := make([]bool, 0, len(c.Flags)+len(c.Nested))
	for _, test := range c.Flags {
		value, set := state[test.Flag]
		results = append(results, set && value == test.Value)
	}
	for _, nested := range c.Nested {
		results = append(results, evalCondition(nested, state))
	}

	if c.Operator == OperatorOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// validateFlagScope walks the whole script before evaluation and
// rejects conditions referencing flags no strictly-earlier step
// declares. Declaration is lexical: a skipped or unselected option
// still declares its flags.
func validateFlagScope(cfg *ModuleConfig) error {
	declared := make(map[string]bool)

	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if err := checkFlagRefs(step.Visible, declared, step.Name); err != nil {
			return err
		}
		for j := range step.Groups {
			for k := range step.Groups[j].Options {
				if err := checkFlagRefs(step.Groups[j].Options[k].Visible, declared, step.Name); err != nil {
					return err
				}
			}
		}
		for j := range step.Groups {
			for k := range step.Groups[j].Options {
				for _, flag := range step.Groups[j].Options[k].Flags {
					declared[flag.Name] = true
				}
			}
		}
	}

	for _, install := range cfg.ConditionalInstalls {
		if err := checkFlagRefs(install.When, declared, "conditionalFileInstalls"); err != nil {
			return err
		}
	}

	return nil
}

func checkFlagRefs(c *Condition, declared map[string]bool, where string) error {
	if c == nil {
		return nil
	}
	for _, test := range c.Flags {
		if !declared[test.Flag] {
			return errors.Newf(errors.ErrUnknownConditionFlag,
				"condition references flag %q not set by an earlier step", test.Flag).
				WithDetail("flag", test.Flag).
				WithDetail("step", where)
		}
	}
	for _, nested := range c.Nested {
		if err := checkFlagRefs(nested, declared, where); err != nil {
			return err
		}
	}
	return nil
}

// resolveMappings orders mappings for application and resolves
// destination conflicts. Higher priority applies later and therefore
// wins; within equal priority evaluation order is kept, so the later
// evaluated mapping wins. File mappings with the same destination
// collapse to the winner; folder mappings to a shared destination are
// all kept since their contents merge file-for-file at apply time.
func resolveMappings(candidates []FileMapping) []FileMapping {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]FileMapping, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	fileWinner := make(map[string]int)
	folderWinner := make(map[string]int)
	for i, m := range sorted {
		if m.IsFolder {
			folderWinner[strings.ToLower(m.Source)+"|"+destinationKey(m.Destination)] = i
		} else {
			fileWinner[destinationKey(m.Destination)] = i
		}
	}

	result := make([]FileMapping, 0, len(sorted))
	for i, m := range sorted {
		if m.IsFolder {
			if folderWinner[strings.ToLower(m.Source)+"|"+destinationKey(m.Destination)] == i {
				result = append(result, m)
			}
		} else if fileWinner[destinationKey(m.Destination)] == i {
			result = append(result, m)
		}
	}
	return result
}
