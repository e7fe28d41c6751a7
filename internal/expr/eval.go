// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package expr

import (
	"fmt"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

// parser walks a token stream produced by Tokenize, resolving identifier
// tokens to values via resolve. Grammar (conventional precedence,
// parentheses regroup):
//
//	comparison := addsub (('=' | '<' | '>') addsub)?
//	addsub     := muldiv (('+' | '-') muldiv)*
//	muldiv     := primary (('*' | '/') primary)*
//	primary    := NUMBER | IDENTIFIER | '(' comparison ')'
type parser struct {
	tokens  []string
	pos     int
	resolve func(identifier string) tagstore.Value
}

// Eval evaluates a definition's token stream against the current values
// of its referenced tags. resolve is called once per identifier
// occurrence.
func Eval(tokens []string, resolve func(identifier string) tagstore.Value) (tagstore.Value, error) {
	p := &parser{tokens: tokens, resolve: resolve}
	v, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q: %w", p.peek(), scadaerr.ErrEval)
	}
	return v, nil
}

func (p *parser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseComparison() (tagstore.Value, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	switch p.peek() {
	case "=", "<", ">":
		op := p.next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return compare(op, left, right)
	default:
		return left, nil
	}
}

func (p *parser) parseAddSub() (tagstore.Value, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.peek() == "+" || p.peek() == "-" {
		op := p.next()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left, err = arithmetic(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseMulDiv() (tagstore.Value, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "*" || p.peek() == "/" {
		op := p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left, err = arithmetic(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parsePrimary() (tagstore.Value, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of expression: %w", scadaerr.ErrEval)
	case tok == "(":
		p.next()
		v, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing paren: %w", scadaerr.ErrEval)
		}
		p.next()
		return v, nil
	case IsIdentifier(tok):
		p.next()
		return p.resolve(tok), nil
	default:
		p.next()
		return parseNumeral(tok)
	}
}
