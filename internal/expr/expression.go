// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package expr

import (
	"fmt"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Expression is a subscriber that is also a tag: its value is the result
// of reevaluating Definition whenever any referenced tag changes. Alarm
// wraps one (its Expr field) to add edge detection on top.
type Expression struct {
	Tag        *tagstore.Tag
	Definition string
	UsedTags   []string // first-seen order of referenced tag keys

	tokens []string
	index  *tagstore.TagIndex
}

// New constructs an Expression tag. Call Analyze before relying on its
// value; until then Tag.Get() returns nil.
func New(key, description, definition string, index *tagstore.TagIndex) *Expression {
	return &Expression{
		Tag:        tagstore.NewTag(key, description, nil),
		Definition: definition,
		tokens:     Tokenize(definition),
		index:      index,
	}
}

// Identifiers returns the distinct alphabetic-leading tokens of
// definition, in first-seen order, without requiring them to resolve.
// Used by Ensemble to build the dependency graph for cycle detection
// before any Expression is analyzed.
func Identifiers(definition string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range Tokenize(definition) {
		if !IsIdentifier(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Analyze subscribes the expression to each distinct tag referenced in
// Definition and populates UsedTags, in first-seen order. Fails with
// ErrBadExpression if any identifier does not resolve in the tag index;
// no subscriptions are registered in that case.
func (e *Expression) Analyze() error {
	return e.AnalyzeFor(e)
}

// AnalyzeFor is Analyze but registers sub (rather than e itself) as the
// subscriber of every referenced tag. Alarm uses this so that it — not
// the Expression it wraps — is the one notified of input changes, which
// lets it compare the expression's value before and after recomputation
// for edge detection.
func (e *Expression) AnalyzeFor(sub tagstore.Subscriber) error {
	ids := Identifiers(e.Definition)
	resolved := make([]*tagstore.Tag, 0, len(ids))
	for _, id := range ids {
		t, ok := e.index.Get(id)
		if !ok {
			return fmt.Errorf("%s: identifier %q: %w", e.Tag.Key, id, scadaerr.ErrBadExpression)
		}
		resolved = append(resolved, t)
	}

	e.UsedTags = ids
	for _, t := range resolved {
		t.Subscribe(sub)
	}

	e.Reevaluate()
	return nil
}

// Update implements tagstore.Subscriber: any referenced tag changing
// triggers reevaluation. changed is unused beyond that signal — the
// expression always reads the current values of every UsedTags entry,
// matching the source's whole-expression reevaluation.
func (e *Expression) Update(changed *tagstore.Tag) {
	e.Reevaluate()
}

// Reevaluate recomputes the expression's value from its referenced
// tags' current values and writes it through Tag.Update (so downstream
// subscribers only fire on inequality). Exported so Alarm can trigger it
// explicitly around its own edge-detection bookkeeping.
func (e *Expression) Reevaluate() {
	for _, key := range e.UsedTags {
		t, ok := e.index.Get(key)
		if !ok || t.Get() == nil {
			e.Tag.Update(nil)
			return
		}
	}

	v, err := Eval(e.tokens, func(id string) tagstore.Value {
		t, _ := e.index.Get(id)
		return t.Get()
	})
	if err != nil {
		log.Warnf("expr: %s: %v", e.Tag.Key, err)
		e.Tag.Update(nil)
		return
	}
	e.Tag.Update(v)
}
