package definition

import (
	"fmt"
	"sort"
	"strings"

	"caseflow/bizerror"
	"caseflow/domain/expr"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const SharedFolder = "shared"
const RootDocument = "definition.yaml"

// Loader reads declarative definition documents from a Source and builds
// the immutable definition graph. Loading happens once at startup; any
// unresolved reference is fatal so the engine never serves a partially
// wired graph.
type Loader struct {
	source Source
	Cache  *expr.Cache

	Definitions     map[string]*Definition
	NamedConditions map[string]*Condition
	ValueSets       map[string][]string
	Roles           map[string]string
	Messages        map[string]*MessageTemplate
}

func NewLoader(source Source) *Loader {
	return &Loader{
		source: source,
		Cache:  expr.NewCache(),

		Definitions:     map[string]*Definition{},
		NamedConditions: map[string]*Condition{},
		ValueSets:       map[string][]string{},
		Roles:           map[string]string{},
		Messages:        map[string]*MessageTemplate{},
	}
}

func (l *Loader) Definition(name string) (*Definition, error) {
	d, found := l.Definitions[name]
	if !found {
		return nil, &bizerror.ErrEntityNotFound{EntityType: "definition", Key: name}
	}
	return d, nil
}

func (l *Loader) Load() error {
	folders, err := l.source.Folders()
	if err != nil {
		return &bizerror.ErrDefinitionLoad{Detail: err.Error()}
	}

	b := &builder{cache: l.Cache}

	// shared documents first: named conditions, value sets, roles, messages
	for _, folder := range folders {
		if folder != SharedFolder {
			continue
		}
		if err := l.loadShared(b, folder); err != nil {
			return err
		}
	}
	if err := l.resolveSharedConditions(); err != nil {
		return err
	}

	// definition documents: one folder per definition, root plus fragments
	docs := map[string]*definitionDoc{}
	for _, folder := range folders {
		if folder == SharedFolder {
			continue
		}
		doc, err := l.loadDefinitionDoc(folder)
		if err != nil {
			return err
		}
		if doc.Name == "" {
			doc.Name = folder
		}
		if _, duplicated := docs[doc.Name]; duplicated {
			return &bizerror.ErrDefinitionLoad{Definition: doc.Name, Detail: "duplicate definition name"}
		}
		docs[doc.Name] = doc
	}

	// children are processed after the parent they inherit from
	order, err := topologicalOrder(docs)
	if err != nil {
		return err
	}

	for _, name := range order {
		built, err := b.buildDefinition(docs[name])
		if err != nil {
			return &bizerror.ErrDefinitionLoad{Definition: name, Detail: err.Error()}
		}
		if built.Parent != "" {
			parent, found := l.Definitions[built.Parent]
			if !found {
				return &bizerror.ErrDefinitionLoad{Definition: name, Detail: "unresolved parent '" + built.Parent + "'"}
			}
			built = mergeDefinitions(built, parent)
		}
		l.Definitions[built.Name] = built
	}

	for _, name := range order {
		if err := l.wireDefinition(l.Definitions[name]); err != nil {
			return err
		}
	}

	logrus.Infof("definition graph loaded: %d definitions, %d named conditions, %d value sets",
		len(l.Definitions), len(l.NamedConditions), len(l.ValueSets))
	return nil
}

func (l *Loader) loadShared(b *builder, folder string) error {
	files, err := l.source.Files(folder)
	if err != nil {
		return &bizerror.ErrDefinitionLoad{Detail: err.Error()}
	}
	for _, file := range files {
		content, err := l.source.Read(folder, file)
		if err != nil {
			return &bizerror.ErrDefinitionLoad{Detail: err.Error()}
		}
		doc := sharedDoc{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return &bizerror.ErrDefinitionLoad{Detail: fmt.Sprintf("%s/%s: %v", folder, file, err)}
		}

		for name, c := range doc.Conditions {
			condition, err := b.buildCondition(c)
			if err != nil {
				return &bizerror.ErrDefinitionLoad{Detail: fmt.Sprintf("condition '%s': %v", name, err)}
			}
			l.NamedConditions[name] = condition
		}
		for name, values := range doc.ValueSets {
			l.ValueSets[name] = append([]string{}, values...)
		}
		for name, title := range doc.Roles {
			l.Roles[name] = title
		}
		for name, m := range doc.Messages {
			message, err := b.buildMessage(name, m)
			if err != nil {
				return &bizerror.ErrDefinitionLoad{Detail: fmt.Sprintf("message '%s': %v", name, err)}
			}
			l.Messages[name] = message
		}
	}
	return nil
}

func (l *Loader) loadDefinitionDoc(folder string) (*definitionDoc, error) {
	files, err := l.source.Files(folder)
	if err != nil {
		return nil, &bizerror.ErrDefinitionLoad{Definition: folder, Detail: err.Error()}
	}

	var root *definitionDoc
	var fragments []*definitionDoc
	for _, file := range files {
		content, err := l.source.Read(folder, file)
		if err != nil {
			return nil, &bizerror.ErrDefinitionLoad{Definition: folder, Detail: err.Error()}
		}
		doc := definitionDoc{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, &bizerror.ErrDefinitionLoad{Definition: folder, Detail: fmt.Sprintf("%s: %v", file, err)}
		}
		if file == RootDocument {
			root = &doc
		} else {
			fragments = append(fragments, &doc)
		}
	}
	if root == nil {
		return nil, &bizerror.ErrDefinitionLoad{Definition: folder, Detail: "missing " + RootDocument}
	}

	for _, fragment := range fragments {
		root = mergeDocs(fragment, root)
	}
	return root, nil
}

func topologicalOrder(docs map[string]*definitionDoc) ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	marks := map[string]int{}
	order := []string{}

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			return &bizerror.ErrDefinitionLoad{Definition: name, Detail: "inheritance cycle"}
		}
		marks[name] = visiting
		if parent := docs[name].Parent; parent != "" {
			if _, found := docs[parent]; !found {
				return &bizerror.ErrDefinitionLoad{Definition: name, Detail: "unresolved parent '" + parent + "'"}
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		marks[name] = done
		order = append(order, name)
		return nil
	}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	// stable iteration for deterministic error reporting
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// resolveSharedConditions wires named references between shared conditions
// themselves, rejecting reference cycles.
func (l *Loader) resolveSharedConditions() error {
	for name, condition := range l.NamedConditions {
		if err := l.resolveCondition(condition, map[string]bool{name: true}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) resolveCondition(c *Condition, visiting map[string]bool) error {
	if c == nil {
		return nil
	}
	switch part := c.Part().(type) {
	case *NamedCondition:
		if visiting[part.Name] {
			return &bizerror.ErrDefinitionLoad{Detail: "condition reference cycle at '" + part.Name + "'"}
		}
		resolved, found := l.NamedConditions[part.Name]
		if !found {
			return &bizerror.ErrDefinitionLoad{Detail: "unresolved named condition '" + part.Name + "'"}
		}
		visiting[part.Name] = true
		if err := l.resolveCondition(resolved, visiting); err != nil {
			return err
		}
		delete(visiting, part.Name)
		part.Resolved = resolved
	case *LogicalCondition:
		for _, child := range part.Children {
			if err := l.resolveCondition(child, visiting); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireDefinition runs the second load pass over a structurally merged
// definition: type resolution, named references, value sets, messages,
// role checks and the reverse dependency edges.
func (l *Loader) wireDefinition(d *Definition) error {
	fail := func(detail string) error {
		return &bizerror.ErrDefinitionLoad{Definition: d.Name, Detail: detail}
	}

	for _, p := range d.Properties {
		if err := l.resolvePropertyType(d, p); err != nil {
			return err
		}
		if p.ChoicesRef != "" {
			values, found := l.ValueSets[p.ChoicesRef]
			if !found {
				return fail("property '" + p.Name + "': unresolved value set '" + p.ChoicesRef + "'")
			}
			p.Choices = append([]string{}, values...)
		}
	}

	var conditionErr error
	walkConditions(d, func(c *Condition) {
		if conditionErr == nil {
			if err := l.resolveCondition(c, map[string]bool{}); err != nil {
				conditionErr = fail(err.Error())
			}
		}
	})
	if conditionErr != nil {
		return conditionErr
	}

	for _, form := range d.Forms {
		seen := map[string]bool{}
		for _, q := range form.Questions {
			if seen[q.Name] {
				return fail("form '" + form.Name + "': duplicate question '" + q.Name + "'")
			}
			seen[q.Name] = true
			if d.Property(q.Name) == nil {
				return fail("form '" + form.Name + "': unresolved property '" + q.Name + "'")
			}
		}
	}

	for _, action := range d.Actions {
		if _, found := l.Roles[action.Role]; !found {
			return fail("action '" + action.Action + "': unresolved role '" + action.Role + "'")
		}
	}

	for _, trigger := range d.Triggers {
		for _, effect := range trigger.Effects {
			if effect.MessageRef != "" {
				message, found := l.Messages[effect.MessageRef]
				if !found {
					return fail("trigger '" + trigger.Name + "': unresolved message '" + effect.MessageRef + "'")
				}
				effect.Message = message
			}
		}
	}

	computeDependents(d)
	return nil
}

func (l *Loader) resolvePropertyType(d *Definition, p *PropertyDefinition) error {
	declared := strings.TrimSpace(p.Type)
	embedded := false

	for {
		if strings.HasSuffix(declared, "!") {
			p.Required = true
			declared = declared[:len(declared)-1]
			continue
		}
		if strings.HasSuffix(declared, "[]") {
			p.IsArray = true
			declared = declared[:len(declared)-2]
			continue
		}
		if strings.HasSuffix(declared, "{}") {
			embedded = true
			declared = declared[:len(declared)-2]
			continue
		}
		break
	}

	switch DataType(declared) {
	case TypeText, TypeNumber, TypeBool, TypeTime, TypeSelect, TypeUser, TypeCurrency, TypeFile:
		p.DataType = DataType(declared)
		return nil
	}

	target, found := l.Definitions[declared]
	if !found {
		return &bizerror.ErrDefinitionLoad{Definition: d.Name,
			Detail: "property '" + p.Name + "': unresolved type '" + p.Type + "'"}
	}
	p.Ref = target
	if embedded {
		p.DataType = TypeObject
	} else {
		p.DataType = TypeReference
	}
	return nil
}

// computeDependents fills the derived reverse dependency edges: property
// X lists every property whose conditions mention X.
func computeDependents(d *Definition) {
	for _, p := range d.Properties {
		p.Dependents = nil
	}
	for _, p := range d.Properties {
		deps := map[string]bool{}
		for _, c := range []*Condition{p.StartCondition, p.ValidationCondition, p.FilterCondition} {
			for _, path := range c.Properties() {
				// complex lookups are opaque, not property paths
				if strings.ContainsAny(path, "()") {
					continue
				}
				root := path
				if i := strings.Index(path, "."); i > 0 {
					root = path[:i]
				}
				deps[root] = true
			}
		}
		for dep := range deps {
			target := d.Property(dep)
			if target == nil || target == p {
				continue
			}
			target.Dependents = appendUnique(target.Dependents, p.Name)
		}
	}
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func walkConditions(d *Definition, fn func(*Condition)) {
	apply := func(c *Condition) {
		if c != nil {
			fn(c)
		}
	}
	for _, p := range d.Properties {
		apply(p.StartCondition)
		apply(p.ValidationCondition)
		apply(p.FilterCondition)
	}
	var walkSteps func(steps []*Step)
	walkSteps = func(steps []*Step) {
		for _, s := range steps {
			apply(s.StartCondition)
			apply(s.EndCondition)
			walkSteps(s.Children)
		}
	}
	walkSteps(d.Steps)
	for _, a := range d.Actions {
		apply(a.Condition)
	}
	for _, t := range d.Triggers {
		apply(t.Condition)
	}
}
