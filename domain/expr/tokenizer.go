package expr

import (
	"strings"
)

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenPunct
	tokenOperator
	tokenRawTemplate
)

type token struct {
	kind tokenKind
	text string
}

const templateFuncName = "template"

// tokenize splits a source string on the fixed punctuation set and the
// two-character operators, treating every other run as a literal token.
// The argument of a template(...) call is consumed as one raw string
// rather than re-tokenized.
func tokenize(source string) []token {
	var tokens []token
	var literal strings.Builder

	flush := func() {
		text := strings.TrimSpace(literal.String())
		literal.Reset()
		if text != "" {
			tokens = append(tokens, token{kind: tokenLiteral, text: text})
		}
	}

	runes := []rune(source)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if c == '\'' || c == '"' {
			// quoted text keeps punctuation and spaces verbatim
			literal.WriteRune(c)
			for i++; i < len(runes); i++ {
				literal.WriteRune(runes[i])
				if runes[i] == c {
					break
				}
			}
			continue
		}

		if i+1 < len(runes) {
			two := string(runes[i : i+2])
			if two == OpEqual || two == OpLessOrEqual || two == OpGreaterOrEqual {
				flush()
				tokens = append(tokens, token{kind: tokenOperator, text: two})
				i++
				continue
			}
		}

		switch c {
		case '(', ')', '[', ']', ',':
			if c == '(' && strings.TrimSpace(literal.String()) == templateFuncName {
				literal.Reset()
				raw, consumed := consumeRawArgument(runes[i+1:])
				tokens = append(tokens, token{kind: tokenRawTemplate, text: raw})
				i += consumed + 1
				continue
			}
			flush()
			tokens = append(tokens, token{kind: tokenPunct, text: string(c)})
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			literal.WriteRune(c)
		}
	}
	flush()
	return tokens
}

// consumeRawArgument reads up to the matching close paren and returns the
// raw argument text plus the number of runes consumed (including the
// close paren).
func consumeRawArgument(runes []rune) (string, int) {
	depth := 1
	var raw strings.Builder
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '(' {
			depth++
		} else if c == ')' {
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw.String()), i + 1
			}
		}
		raw.WriteRune(c)
	}
	return strings.TrimSpace(raw.String()), len(runes)
}
