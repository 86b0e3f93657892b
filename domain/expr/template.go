package expr

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Template is an ordered sequence of literal segments and embedded
// expressions. Rendering concatenates literals with the stringified
// evaluation of each placeholder.
type Template struct {
	Source string
	Parts  []TemplatePart
}

type TemplatePart struct {
	Literal string
	Expr    Node
}

// ParseTemplate splits literal text from {{ ... }} placeholders and parses
// each placeholder as an expression.
func ParseTemplate(source string) (*Template, error) {
	t := &Template{Source: source}

	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(source, -1) {
		if loc[0] > last {
			t.Parts = append(t.Parts, TemplatePart{Literal: source[last:loc[0]]})
		}
		node, err := Parse(strings.TrimSpace(source[loc[2]:loc[3]]))
		if err != nil {
			return nil, err
		}
		t.Parts = append(t.Parts, TemplatePart{Expr: node})
		last = loc[1]
	}
	if last < len(source) {
		t.Parts = append(t.Parts, TemplatePart{Literal: source[last:]})
	}
	return t, nil
}

func (t *Template) Render(ctx Context) (string, error) {
	var b strings.Builder
	for _, part := range t.Parts {
		if part.Expr == nil {
			b.WriteString(part.Literal)
			continue
		}
		v, err := part.Expr.Eval(ctx)
		if err != nil {
			return "", err
		}
		b.WriteString(Stringify(v))
	}
	return b.String(), nil
}

// Eval of a template renders it; a template used inside an expression
// yields its rendered string.
func (t *Template) Eval(ctx Context) (interface{}, error) {
	return t.Render(ctx)
}

func (t *Template) Properties() []string {
	var all []string
	for _, part := range t.Parts {
		if part.Expr != nil {
			all = append(all, part.Expr.Properties()...)
		}
	}
	return dedup(all)
}

func (t *Template) String() string {
	return templateFuncName + "(" + t.Source + ")"
}
