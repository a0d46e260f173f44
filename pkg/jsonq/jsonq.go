// Package jsonq evaluates jq expressions against decoded JSON values.
//
// Mapping rules are user-authored, so the same expressions tend to be
// evaluated over and over against different payloads. Compiled queries are
// cached by expression text.
package jsonq

import (
	"fmt"
	"sync"

	"github.com/itchyny/gojq"
)

// ExpressionError reports a jq expression that failed to parse, compile or
// evaluate.
type ExpressionError struct {
	Expr string
	Err  error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("expression %q: %s", e.Expr, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

var (
	cacheLock sync.Mutex
	cache     map[string]*gojq.Code
)

func compile(expr string) (*gojq.Code, error) {
	cacheLock.Lock()
	defer cacheLock.Unlock()

	if cache == nil {
		cache = make(map[string]*gojq.Code)
	}

	if code, ok := cache[expr]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, err
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, err
	}

	cache[expr] = code

	return code, nil
}

// Evaluate runs expr against input and returns the first value the query
// produces, or nil when the query produces no output. Input must be a value
// decoded by encoding/json (maps, slices, strings, float64, bool, nil).
func Evaluate(expr string, input interface{}) (interface{}, error) {
	code, err := compile(expr)
	if err != nil {
		return nil, &ExpressionError{Expr: expr, Err: err}
	}

	iter := code.Run(input)

	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}

	if err, ok := v.(error); ok {
		return nil, &ExpressionError{Expr: expr, Err: err}
	}

	return v, nil
}

// Truthy reports whether a query result selects a rule: jq-style falsiness,
// where null and false exclude and everything else matches.
func Truthy(v interface{}) bool {
	if v == nil {
		return false
	}

	if b, ok := v.(bool); ok {
		return b
	}

	return true
}
