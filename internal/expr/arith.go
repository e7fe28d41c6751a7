// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

func parseNumeral(tok string) (tagstore.Value, error) {
	if !strings.Contains(tok, ".") {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("not a numeral %q: %w", tok, scadaerr.ErrEval)
	}
	return f, nil
}

// asNumber reports whether v is numeric and returns its float64 form
// plus whether it was an integer.
func asNumber(v tagstore.Value) (f float64, isInt bool, ok bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true, true
	case float64:
		return n, false, true
	default:
		return 0, false, false
	}
}

// arithmetic implements + - * /: integer stays integer if both sides are
// integer, otherwise the result promotes to float; division by zero is
// an EvalError.
func arithmetic(op string, left, right tagstore.Value) (tagstore.Value, error) {
	lf, lInt, lOK := asNumber(left)
	rf, rInt, rOK := asNumber(right)
	if !lOK || !rOK {
		return nil, fmt.Errorf("non-numeric operand for %q: %w", op, scadaerr.ErrEval)
	}

	bothInt := lInt && rInt
	switch op {
	case "+":
		if bothInt {
			return left.(int64) + right.(int64), nil
		}
		return lf + rf, nil
	case "-":
		if bothInt {
			return left.(int64) - right.(int64), nil
		}
		return lf - rf, nil
	case "*":
		if bothInt {
			return left.(int64) * right.(int64), nil
		}
		return lf * rf, nil
	case "/":
		if bothInt {
			r := right.(int64)
			if r == 0 {
				return nil, fmt.Errorf("division by zero: %w", scadaerr.ErrEval)
			}
			return left.(int64) / r, nil
		}
		if rf == 0 {
			return nil, fmt.Errorf("division by zero: %w", scadaerr.ErrEval)
		}
		return lf / rf, nil
	default:
		return nil, fmt.Errorf("unknown operator %q: %w", op, scadaerr.ErrEval)
	}
}

// compare implements = < >. "=" is a generic equality usable on any
// operand type (numeric operands promote to float as needed); "<" and
// ">" are numeric-only ordered comparisons.
func compare(op string, left, right tagstore.Value) (tagstore.Value, error) {
	lf, _, lNum := asNumber(left)
	rf, _, rNum := asNumber(right)

	switch op {
	case "=":
		if lNum && rNum {
			return lf == rf, nil
		}
		return tagstore.Equal(left, right), nil
	case "<":
		if !lNum || !rNum {
			return nil, fmt.Errorf("non-numeric operand for %q: %w", op, scadaerr.ErrEval)
		}
		return lf < rf, nil
	case ">":
		if !lNum || !rNum {
			return nil, fmt.Errorf("non-numeric operand for %q: %w", op, scadaerr.ErrEval)
		}
		return lf > rf, nil
	default:
		return nil, fmt.Errorf("unknown operator %q: %w", op, scadaerr.ErrEval)
	}
}
