package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse builds an expression tree from a source string. Parsing is
// deterministic and side-effect free; parsed trees are immutable and
// safe to share.
func Parse(source string) (Node, error) {
	tokens := tokenize(source)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpression()
	if err != nil {
		return nil, fmt.Errorf("parse '%s': %w", source, err)
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("parse '%s': unexpected token '%s'", source, p.tokens[p.pos].text)
	}
	return node, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) parseExpression() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		if p.peekPunct("(") {
			call, ok := node.(*Ident)
			if !ok {
				return nil, fmt.Errorf("call target must be a name")
			}
			p.pos++
			args, err := p.parseArgs(")")
			if err != nil {
				return nil, err
			}
			node = &Call{Name: call.Path, Args: args}
			continue
		}
		if p.peekPunct("[") {
			p.pos++
			key, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			node = &Index{Target: node, Key: key}
			continue
		}
		break
	}

	// a single trailing binary operator application
	if p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenOperator {
		op := p.tokens[p.pos].text
		p.pos++
		right, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, Left: node, Right: right}, nil
	}

	return node, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	t := p.tokens[p.pos]

	if t.kind == tokenRawTemplate {
		p.pos++
		return ParseTemplate(unquote(t.text))
	}
	if t.kind != tokenLiteral {
		return nil, fmt.Errorf("unexpected token '%s'", t.text)
	}
	p.pos++

	if (strings.HasPrefix(t.text, "'") && strings.HasSuffix(t.text, "'")) ||
		(strings.HasPrefix(t.text, `"`) && strings.HasSuffix(t.text, `"`)) {
		return &Text{Value: unquote(t.text)}, nil
	}
	if t.text == "true" || t.text == "false" {
		return &Bool{Value: t.text == "true"}, nil
	}
	if n, err := strconv.ParseFloat(t.text, 64); err == nil {
		return &Number{Value: n}, nil
	}
	return &Ident{Path: t.text}, nil
}

func (p *parser) parseArgs(closer string) ([]Node, error) {
	args := []Node{}
	if p.peekPunct(closer) {
		p.pos++
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.peekPunct(",") {
			p.pos++
			continue
		}
		if err := p.expectPunct(closer); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) peekPunct(text string) bool {
	return p.pos < len(p.tokens) && p.tokens[p.pos].kind == tokenPunct && p.tokens[p.pos].text == text
}

func (p *parser) expectPunct(text string) error {
	if !p.peekPunct(text) {
		if p.pos >= len(p.tokens) {
			return fmt.Errorf("expected '%s' but expression ended", text)
		}
		return fmt.Errorf("expected '%s' but got '%s'", text, p.tokens[p.pos].text)
	}
	p.pos++
	return nil
}

func unquote(text string) string {
	if len(text) >= 2 {
		first := text[0]
		if (first == '\'' || first == '"') && text[len(text)-1] == first {
			return text[1 : len(text)-1]
		}
	}
	return text
}
