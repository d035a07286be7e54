package fomod

import (
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/nukeythenuke/torygg/pkg/errors"
	"github.com/nukeythenuke/torygg/pkg/logging"
	"github.com/nukeythenuke/torygg/pkg/types"
)

// ParseFile parses the installer script at the given path
func ParseFile(fs types.FS, configPath string) (*ModuleConfig, error) {
	data, err := fs.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to read %s", configPath).
			WithDetail("path", configPath)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, errors.Wrap(err, errors.ErrMalformedScript, "invalid installer XML").
			WithDetail("path", configPath)
	}
	return parseDocument(doc)
}

// Parse parses an installer script from a reader
func Parse(r io.Reader) (*ModuleConfig, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, errors.ErrMalformedScript, "invalid installer XML")
	}
	return parseDocument(doc)
}

func parseDocument(doc *etree.Document) (*ModuleConfig, error) {
	logger := logging.GetLogger("fomod")

	root := doc.Root()
	if root == nil || root.Tag != "config" {
		return nil, errors.New(errors.ErrMalformedScript, "missing config root element")
	}

	cfg := &ModuleConfig{}
	if name := root.SelectElement("moduleName"); name != nil {
		cfg.Name = strings.TrimSpace(name.Text())
	}
	if root.SelectElement("moduleDependencies") != nil {
		logger.Warn().Msg("Ignoring moduleDependencies, external state is not checked")
	}

	if required := root.SelectElement("requiredInstallFiles"); required != nil {
		files, err := parseFileList(required)
		if err != nil {
			return nil, err
		}
		cfg.RequiredFiles = files
	}

	if steps := root.SelectElement("installSteps"); steps != nil {
		ordered, err := orderedChildren(steps, "installStep")
		if err != nil {
			return nil, err
		}
		for _, el := range ordered {
			step, err := parseStep(el)
			if err != nil {
				return nil, err
			}
			cfg.Steps = append(cfg.Steps, step)
		}
	}

	if conditional := root.SelectElement("conditionalFileInstalls"); conditional != nil {
		installs, err := parseConditionalInstalls(conditional)
		if err != nil {
			return nil, err
		}
		cfg.ConditionalInstalls = installs
	}

	logger.Debug().
		Str("module", cfg.Name).
		Int("steps", len(cfg.Steps)).
		Int("requiredFiles", len(cfg.RequiredFiles)).
		Int("conditionalInstalls", len(cfg.ConditionalInstalls)).
		Msg("Parsed installer script")

	return cfg, nil
}

func parseStep(el *etree.Element) (InstallStep, error) {
	name := el.SelectAttr("name")
	if name == nil {
		return InstallStep{}, errors.New(errors.ErrMalformedScript, "install step without name")
	}
	step := InstallStep{Name: name.Value}

	if visible := el.SelectElement("visible"); visible != nil {
		cond, err := parseConditionContainer(visible)
		if err != nil {
			return InstallStep{}, err
		}
		step.Visible = cond
	}

	if groups := el.SelectElement("optionalFileGroups"); groups != nil {
		ordered, err := orderedChildren(groups, "group")
		if err != nil {
			return InstallStep{}, err
		}
		for _, groupEl := range ordered {
			group, err := parseGroup(groupEl)
			if err != nil {
				return InstallStep{}, err
			}
			step.Groups = append(step.Groups, group)
		}
	}

	return step, nil
}

func parseGroup(el *etree.Element) (Group, error) {
	name := el.SelectAttr("name")
	if name == nil {
		return Group{}, errors.New(errors.ErrMalformedScript, "group without name")
	}
	groupType, err := ParseGroupType(el.SelectAttrValue("type", ""))
	if err != nil {
		return Group{}, err
	}
	group := Group{Name: name.Value, Type: groupType}

	if plugins := el.SelectElement("plugins"); plugins != nil {
		ordered, err := orderedChildren(plugins, "plugin")
		if err != nil {
			return Group{}, err
		}
		for _, optionEl := range ordered {
			option, err := parseOption(optionEl)
			if err != nil {
				return Group{}, err
			}
			group.Options = append(group.Options, option)
		}
	}

	return group, nil
}

func parseOption(el *etree.Element) (Option, error) {
	name := el.SelectAttr("name")
	if name == nil {
		return Option{}, errors.New(errors.ErrMalformedScript, "option without name")
	}
	option := Option{Name: name.Value, Type: TypeOptional}

	if desc := el.SelectElement("description"); desc != nil {
		option.Description = strings.TrimSpace(desc.Text())
	}

	if visible := el.SelectElement("visible"); visible != nil {
		cond, err := parseConditionContainer(visible)
		if err != nil {
			return Option{}, err
		}
		option.Visible = cond
	}

	if flags := el.SelectElement("conditionFlags"); flags != nil {
		for _, flagEl := range flags.SelectElements("flag") {
			flagName := flagEl.SelectAttr("name")
			if flagName == nil {
				return Option{}, errors.New(errors.ErrMalformedScript, "condition flag without name")
			}
			option.Flags = append(option.Flags, FlagSet{
				Name:  flagName.Value,
				Value: strings.TrimSpace(flagEl.Text()),
			})
		}
	}

	if files := el.SelectElement("files"); files != nil {
		mappings, err := parseFileList(files)
		if err != nil {
			return Option{}, err
		}
		option.Files = mappings
	}

	if descriptor := el.SelectElement("typeDescriptor"); descriptor != nil {
		optionType, err := parseTypeDescriptor(descriptor)
		if err != nil {
			return Option{}, err
		}
		option.Type = optionType
	}

	return option, nil
}

// parseTypeDescriptor reads <type name="..."/>. Conditional descriptors
// fall back to their declared default type since external state is not
// evaluated.
func parseTypeDescriptor(el *etree.Element) (OptionType, error) {
	if typeEl := el.SelectElement("type"); typeEl != nil {
		return ParseOptionType(typeEl.SelectAttrValue("name", ""))
	}
	if depType := el.SelectElement("dependencyType"); depType != nil {
		defaultType := depType.SelectElement("defaultType")
		if defaultType == nil {
			return "", errors.New(errors.ErrMalformedScript, "dependency type without default")
		}
		logging.GetLogger("fomod").Warn().Msg("Using default of conditional type descriptor")
		return ParseOptionType(defaultType.SelectAttrValue("name", ""))
	}
	return "", errors.New(errors.ErrMalformedScript, "empty type descriptor")
}

func parseConditionalInstalls(el *etree.Element) ([]ConditionalInstall, error) {
	patterns := el.SelectElement("patterns")
	if patterns == nil {
		return nil, errors.New(errors.ErrMalformedScript, "conditional installs without patterns")
	}

	var installs []ConditionalInstall
	for _, pattern := range patterns.SelectElements("pattern") {
		deps := pattern.SelectElement("dependencies")
		files := pattern.SelectElement("files")
		if deps == nil || files == nil {
			return nil, errors.New(errors.ErrMalformedScript, "conditional install pattern needs dependencies and files")
		}
		when, err := parseDependencies(deps)
		if err != nil {
			return nil, err
		}
		mappings, err := parseFileList(files)
		if err != nil {
			return nil, err
		}
		installs = append(installs, ConditionalInstall{When: when, Files: mappings})
	}

	return installs, nil
}

// parseConditionContainer reads a <visible> element, which holds either
// bare flagDependency children or full dependencies elements. Direct
// children are combined with And.
func parseConditionContainer(el *etree.Element) (*Condition, error) {
	cond := &Condition{Operator: OperatorAnd}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "flagDependency":
			test, err := parseFlagTest(child)
			if err != nil {
				return nil, err
			}
			cond.Flags = append(cond.Flags, test)
		case "dependencies":
			nested, err := parseDependencies(child)
			if err != nil {
				return nil, err
			}
			cond.Nested = append(cond.Nested, nested)
		default:
			return nil, errors.Newf(errors.ErrMalformedScript, "unsupported dependency %q", child.Tag)
		}
	}
	return cond, nil
}

func parseDependencies(el *etree.Element) (*Condition, error) {
	operator := ConditionOperator(el.SelectAttrValue("operator", string(OperatorAnd)))
	if operator != OperatorAnd && operator != OperatorOr {
		return nil, errors.Newf(errors.ErrMalformedScript, "unknown dependency operator %q", operator)
	}

	cond := &Condition{Operator: operator}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "flagDependency":
			test, err := parseFlagTest(child)
			if err != nil {
				return nil, err
			}
			cond.Flags = append(cond.Flags, test)
		case "dependencies":
			nested, err := parseDependencies(child)
			if err != nil {
				return nil, err
			}
			cond.Nested = append(cond.Nested, nested)
		default:
			return nil, errors.Newf(errors.ErrMalformedScript, "unsupported dependency %q", child.Tag)
		}
	}
	return cond, nil
}

func parseFlagTest(el *etree.Element) (FlagTest, error) {
	flag := el.SelectAttr("flag")
	if flag == nil {
		return FlagTest{}, errors.New(errors.ErrMalformedScript, "flag dependency without flag name")
	}
	return FlagTest{Flag: flag.Value, Value: el.SelectAttrValue("value", "")}, nil
}

func parseFileList(el *etree.Element) ([]FileMapping, error) {
	var mappings []FileMapping
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "file":
			mapping, err := parseMapping(child, false)
			if err != nil {
				return nil, err
			}
			mappings = append(mappings, mapping)
		case "folder":
			mapping, err := parseMapping(child, true)
			if err != nil {
				return nil, err
			}
			mappings = append(mappings, mapping)
		}
	}
	return mappings, nil
}

func parseMapping(el *etree.Element, isFolder bool) (FileMapping, error) {
	srcAttr := el.SelectAttr("source")
	if srcAttr == nil {
		return FileMapping{}, errors.New(errors.ErrMalformedScript, "file mapping without source")
	}
	source, err := normalizeArchivePath(srcAttr.Value)
	if err != nil {
		return FileMapping{}, err
	}

	mapping := FileMapping{Source: source, IsFolder: isFolder}

	// A missing destination mirrors the source path. An empty one
	// targets the payload root: folder contents land at the top level,
	// files keep their base name.
	if destAttr := el.SelectAttr("destination"); destAttr == nil {
		mapping.Destination = source
	} else {
		dest, err := normalizeArchivePath(destAttr.Value)
		if err != nil {
			return FileMapping{}, err
		}
		if dest == "" && !isFolder {
			dest = path.Base(source)
		}
		mapping.Destination = dest
	}

	if priority := el.SelectAttrValue("priority", ""); priority != "" {
		n, err := strconv.Atoi(priority)
		if err != nil {
			return FileMapping{}, errors.Newf(errors.ErrMalformedScript, "invalid priority %q", priority)
		}
		mapping.Priority = n
	}

	return mapping, nil
}

// normalizeArchivePath converts Windows separators, cleans the path and
// rejects anything escaping the archive or payload root.
func normalizeArchivePath(p string) (string, error) {
	normalized := strings.ReplaceAll(p, "\\", "/")
	normalized = strings.Trim(normalized, "/")
	if normalized == "" {
		return "", nil
	}

	cleaned := path.Clean(normalized)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.Newf(errors.ErrMalformedScript, "path %q escapes the archive root", p)
	}
	return cleaned, nil
}

// orderedChildren returns the named children honoring the parent's
// order attribute. The schema default is Ascending by name.
func orderedChildren(parent *etree.Element, tag string) ([]*etree.Element, error) {
	children := parent.SelectElements(tag)
	order := parent.SelectAttrValue("order", "Ascending")
	switch order {
	case "Explicit":
		return children, nil
	case "Ascending", "Descending":
		sorted := make([]*etree.Element, len(children))
		copy(sorted, children)
		sort.SliceStable(sorted, func(i, j int) bool {
			a := sorted[i].SelectAttrValue("name", "")
			b := sorted[j].SelectAttrValue("name", "")
			if order == "Ascending" {
				return a < b
			}
			return a > b
		})
		return sorted, nil
	default:
		return nil, errors.Newf(errors.ErrMalformedScript, "unknown order %q", order)
	}
}
