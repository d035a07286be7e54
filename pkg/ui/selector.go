package ui

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/fomod"
)

// noneLabel is offered in groups that allow an empty selection
const noneLabel = "(none)"

// InteractiveSelector resolves installer choices by prompting on the
// terminal. The evaluator only consults it where the script leaves a
// real choice, so every prompt is a decision the mod author intended
// the user to make.
type InteractiveSelector struct{}

// Select prompts for one group and returns the chosen options
func (s *InteractiveSelector) Select(step string, group *fomod.Group, candidates []*fomod.Option) ([]*fomod.Option, error) {
	labels := make([]string, 0, len(candidates))
	byLabel := make(map[string]*fomod.Option, len(candidates))
	recommended := ""
	for _, option := range candidates {
		label := optionLabel(option)
		labels = append(labels, label)
		byLabel[label] = option
		if recommended == "" && option.Type == fomod.TypeRecommended {
			recommended = label
		}
	}

	prompt := fmt.Sprintf("%s: %s", step, group.Name)

	switch group.Type {
	case fomod.SelectExactlyOne:
		picker := pterm.DefaultInteractiveSelect.
			WithOptions(labels).
			WithDefaultText(prompt)
		if recommended != "" {
			picker = picker.WithDefaultOption(recommended)
		}
		choice, err := picker.Show()
		if err != nil {
			return nil, promptError(err, group)
		}
		return []*fomod.Option{byLabel[choice]}, nil

	case fomod.SelectAtMostOne:
		picker := pterm.DefaultInteractiveSelect.
			WithOptions(append([]string{noneLabel}, labels...)).
			WithDefaultText(prompt)
		if recommended != "" {
			picker = picker.WithDefaultOption(recommended)
		}
		choice, err := picker.Show()
		if err != nil {
			return nil, promptError(err, group)
		}
		if choice == noneLabel {
			return nil, nil
		}
		return []*fomod.Option{byLabel[choice]}, nil

	case fomod.SelectAny:
		choices, err := pterm.DefaultInteractiveMultiselect.
			WithOptions(labels).
			WithDefaultText(prompt).
			Show()
		if err != nil {
			return nil, promptError(err, group)
		}
		chosen := make([]*fomod.Option, 0, len(choices))
		for _, choice := range choices {
			chosen = append(chosen, byLabel[choice])
		}
		return chosen, nil
	}

	// SelectAll groups never reach the selector.
	return nil, nil
}

// optionLabel renders one selectable entry. Descriptions are shown by
// the prompt itself, so the label stays short.
func optionLabel(option *fomod.Option) string {
	if option.Type == fomod.TypeRecommended {
		return option.Name + " (recommended)"
	}
	return option.Name
}

func promptError(err error, group *fomod.Group) error {
	return errors.Wrapf(err, errors.ErrInvalidInput, "selection for group %q aborted", group.Name).
		WithDetail("group", group.Name)
}
