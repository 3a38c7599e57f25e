package expr

import (
	"fmt"
	"strings"
)

// token kinds produced by the template lexer.
const (
	tokText = iota
	tokPrint
	tokStmt
)

type token struct {
	kind int
	text string // raw text, or the expr/statement source with delimiters stripped
}

// lexTemplate splits source on {{ ... }} and {% ... %} delimiters.
func lexTemplate(source string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(source) {
		printIdx := strings.Index(source[i:], "{{")
		stmtIdx := strings.Index(source[i:], "{%")

		next := -1
		isPrint := false
		switch {
		case printIdx < 0 && stmtIdx < 0:
			tokens = append(tokens, token{kind: tokText, text: source[i:]})
			return tokens, nil
		case printIdx < 0:
			next, isPrint = stmtIdx, false
		case stmtIdx < 0:
			next, isPrint = printIdx, true
		case printIdx < stmtIdx:
			next, isPrint = printIdx, true
		default:
			next, isPrint = stmtIdx, false
		}

		if next > 0 {
			tokens = append(tokens, token{kind: tokText, text: source[i : i+next]})
		}
		i += next

		close := "}}"
		kind := tokPrint
		if !isPrint {
			close = "%}"
			kind = tokStmt
		}
		end := strings.Index(source[i:], close)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated %q", ErrInvalidExpression, source[i:i+2])
		}
		body := strings.TrimSpace(source[i+2 : i+end])
		tokens = append(tokens, token{kind: kind, text: body})
		i += end + len(close)
	}
	return tokens, nil
}

// parseTemplate lexes and parses source into a flat tree of tplNode,
// resolving {% if/elif/else/endif %} and {% for/endfor %} nesting.
func parseTemplate(source string) ([]tplNode, error) {
	tokens, err := lexTemplate(source)
	if err != nil {
		return nil, err
	}
	pos := 0
	nodes, newPos, err := parseBlock(tokens, pos, "")
	if err != nil {
		return nil, err
	}
	if newPos != len(tokens) {
		return nil, fmt.Errorf("%w: unexpected trailing template tokens", ErrInvalidExpression)
	}
	return nodes, nil
}

// parseBlock parses tokens[pos:] until it sees a statement keyword matching
// one of stopWords (or end of input, when stopWords is empty), returning
// the parsed nodes and the index of the token it stopped on.
func parseBlock(tokens []token, pos int, stopWords string) ([]tplNode, int, error) {
	var nodes []tplNode
	for pos < len(tokens) {
		tok := tokens[pos]
		switch tok.kind {
		case tokText:
			nodes = append(nodes, tplText{raw: tok.text})
			pos++
		case tokPrint:
			nodes = append(nodes, tplPrint{expr: tok.text})
			pos++
		case tokStmt:
			word, rest := splitKeyword(tok.text)
			if stopWords != "" && matchesAny(word, stopWords) {
				return nodes, pos, nil
			}
			switch word {
			case "if":
				ifNode, next, err := parseIf(tokens, pos, rest)
				if err != nil {
					return nil, 0, err
				}
				nodes = append(nodes, ifNode)
				pos = next
			case "for":
				forNode, next, err := parseFor(tokens, pos, rest)
				if err != nil {
					return nil, 0, err
				}
				nodes = append(nodes, forNode)
				pos = next
			case "break":
				nodes = append(nodes, tplBreak{})
				pos++
			case "continue":
				nodes = append(nodes, tplContinue{})
				pos++
			default:
				return nil, 0, fmt.Errorf("%w: unknown template tag %q", ErrInvalidExpression, word)
			}
		}
	}
	return nodes, pos, nil
}

func matchesAny(word, stopWords string) bool {
	for _, w := range strings.Fields(stopWords) {
		if w == word {
			return true
		}
	}
	return false
}

func splitKeyword(stmt string) (word, rest string) {
	stmt = strings.TrimSpace(stmt)
	idx := strings.IndexAny(stmt, " \t")
	if idx < 0 {
		return stmt, ""
	}
	return stmt[:idx], strings.TrimSpace(stmt[idx:])
}

func parseIf(tokens []token, pos int, cond string) (tplNode, int, error) {
	node := tplIf{}
	branch := ifBranch{cond: cond}
	pos++ // consume {% if %}

	for {
		body, next, err := parseBlock(tokens, pos, "elif else endif")
		if err != nil {
			return nil, 0, err
		}
		branch.body = body
		pos = next
		if pos >= len(tokens) {
			return nil, 0, fmt.Errorf("%w: unterminated {%% if %%}", ErrInvalidExpression)
		}
		word, rest := splitKeyword(tokens[pos].text)
		switch word {
		case "elif":
			node.branches = append(node.branches, branch)
			branch = ifBranch{cond: rest}
			pos++
		case "else":
			node.branches = append(node.branches, branch)
			pos++
			elseBody, next2, err := parseBlock(tokens, pos, "endif")
			if err != nil {
				return nil, 0, err
			}
			node.elseBody = elseBody
			pos = next2 + 1 // consume endif
			return node, pos, nil
		case "endif":
			node.branches = append(node.branches, branch)
			pos++
			return node, pos, nil
		}
	}
}

func parseFor(tokens []token, pos int, clause string) (tplNode, int, error) {
	varName, iterExpr, err := splitForClause(clause)
	if err != nil {
		return nil, 0, err
	}
	pos++ // consume {% for %}
	body, next, err := parseBlock(tokens, pos, "endfor")
	if err != nil {
		return nil, 0, err
	}
	pos = next
	if pos >= len(tokens) {
		return nil, 0, fmt.Errorf("%w: unterminated {%% for %%}", ErrInvalidExpression)
	}
	pos++ // consume endfor
	return tplFor{varName: varName, iterExpr: iterExpr, body: body}, pos, nil
}

func splitForClause(clause string) (varName, iterExpr string, err error) {
	idx := strings.Index(clause, " in ")
	if idx < 0 {
		return "", "", fmt.Errorf("%w: {%% for %%} must be \"for x in expr\"", ErrInvalidExpression)
	}
	return strings.TrimSpace(clause[:idx]), strings.TrimSpace(clause[idx+len(" in "):]), nil
}
