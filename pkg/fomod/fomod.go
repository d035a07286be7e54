// Package fomod interprets declarative mod installer scripts
// (ModuleConfig.xml). A script is parsed into a ModuleConfig, then
// evaluated against a Selector to produce an install Plan: the final
// list of file mappings that become the mod's payload.
package fomod

import (
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

// GroupType is the selection discipline of an option group
type GroupType string

const (
	// SelectExactlyOne requires exactly one selected option
	SelectExactlyOne GroupType = "SelectExactlyOne"
	// SelectAtMostOne allows zero or one selected option
	SelectAtMostOne GroupType = "SelectAtMostOne"
	// SelectAny allows any number of selected options
	SelectAny GroupType = "SelectAny"
	// SelectAll selects every usable option
	SelectAll GroupType = "SelectAll"
)

// ParseGroupType converts the XML attribute value to a GroupType
func ParseGroupType(s string) (GroupType, error) {
	switch GroupType(s) {
	case SelectExactlyOne, SelectAtMostOne, SelectAny, SelectAll:
		return GroupType(s), nil
	default:
		return "", errors.Newf(errors.ErrMalformedScript, "unknown group type %q", s)
	}
}

// OptionType describes how an option may be selected
type OptionType string

const (
	// TypeOptional options are freely selectable
	TypeOptional OptionType = "Optional"
	// TypeRecommended options are preselected in automatic mode
	TypeRecommended OptionType = "Recommended"
	// TypeRequired options are always included
	TypeRequired OptionType = "Required"
	// TypeNotUsable options can never be selected
	TypeNotUsable OptionType = "NotUsable"
)

// ParseOptionType converts the XML type name to an OptionType
func ParseOptionType(s string) (OptionType, error) {
	switch OptionType(s) {
	case TypeOptional, TypeRecommended, TypeRequired, TypeNotUsable:
		return OptionType(s), nil
	default:
		return "", errors.Newf(errors.ErrMalformedScript, "unknown option type %q", s)
	}
}

// ConditionOperator combines child condition results
type ConditionOperator string

const (
	// OperatorAnd requires every child to hold
	OperatorAnd ConditionOperator = "And"
	// OperatorOr requires at least one child to hold
	OperatorOr ConditionOperator = "Or"
)

// FlagTest compares one condition flag against an expected value.
// A flag no selected option has set compares unequal to every value.
type FlagTest struct {
	Flag  string
	Value string
}

// Condition is a boolean expression over condition flags
type Condition struct {
	Operator ConditionOperator
	Flags    []FlagTest
	Nested   []*Condition
}

// Empty reports whether the condition tests nothing
func (c *Condition) Empty() bool {
	return c == nil || (len(c.Flags) == 0 && len(c.Nested) == 0)
}

// FlagSet assigns a value to a condition flag when its option is selected
type FlagSet struct {
	Name  string
	Value string
}

// FileMapping copies one file or folder from the archive into the
// mod payload. Paths are slash-separated and relative.
type FileMapping struct {
	Source      string
	Destination string
	IsFolder    bool
	Priority    int
}

// Option is one selectable entry of a group. An option whose Visible
// condition is false is not offered at all.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Visible     *Condition
	Files       []FileMapping
	Flags       []FlagSet
}

// Group is a set of options with a selection discipline
type Group struct {
	Name    string
	Type    GroupType
	Options []Option
}

// InstallStep offers the groups of one installer page. A step whose
// Visible condition is false is skipped entirely.
type InstallStep struct {
	Name    string
	Visible *Condition
	Groups  []Group
}

// ConditionalInstall adds files after the steps when its condition holds
type ConditionalInstall struct {
	When  *Condition
	Files []FileMapping
}

// ModuleConfig is a parsed installer script
type ModuleConfig struct {
	Name                string
	RequiredFiles       []FileMapping
	Steps               []InstallStep
	ConditionalInstalls []ConditionalInstall
}

// Selection records one resolved group for diagnostics
type Selection struct {
	Step    string
	Group   string
	Options []string
}

// Plan is the evaluated result: mappings in apply order with unique
// destinations, the final flag state, and the choices that led there.
type Plan struct {
	Mappings   []FileMapping
	Flags      map[string]string
	Selections []Selection
}

// destinationKey folds a destination path for the later-wins conflict
// rule. Scripts produced on Windows disagree about casing.
func destinationKey(dest string) string {
	return strings.ToLower(dest)
}
