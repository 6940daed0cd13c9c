package strapi

import (
	"fmt"
	"slices"
	"strings"
)

// Operator is a filter operator as named on the wire, without the "$".
type Operator string

const (
	OpEq           Operator = "eq"
	OpEqi          Operator = "eqi"
	OpNe           Operator = "ne"
	OpNei          Operator = "nei"
	OpLt           Operator = "lt"
	OpLte          Operator = "lte"
	OpGt           Operator = "gt"
	OpGte          Operator = "gte"
	OpIn           Operator = "in"
	OpNotIn        Operator = "notIn"
	OpContains     Operator = "contains"
	OpContainsi    Operator = "containsi"
	OpNotContains  Operator = "notContains"
	OpNotContainsi Operator = "notContainsi"
	OpNull         Operator = "null"
	OpNotNull      Operator = "notNull"
	OpBetween      Operator = "between"
	OpStartsWith   Operator = "startsWith"
	OpStartsWithi  Operator = "startsWithi"
	OpEndsWith     Operator = "endsWith"
	OpEndsWithi    Operator = "endsWithi"
)

type arity int

const (
	arityOne arity = iota
	arityPair
	arityList
	arityFlag
)

type operatorInfo struct {
	arity      arity
	relational bool
}

var operators = map[Operator]operatorInfo{
	OpEq:           {arity: arityOne, relational: true},
	OpEqi:          {arity: arityOne},
	OpNe:           {arity: arityOne, relational: true},
	OpNei:          {arity: arityOne},
	OpLt:           {arity: arityOne, relational: true},
	OpLte:          {arity: arityOne, relational: true},
	OpGt:           {arity: arityOne, relational: true},
	OpGte:          {arity: arityOne, relational: true},
	OpIn:           {arity: arityList, relational: true},
	OpNotIn:        {arity: arityList, relational: true},
	OpContains:     {arity: arityOne, relational: true},
	OpContainsi:    {arity: arityOne},
	OpNotContains:  {arity: arityOne, relational: true},
	OpNotContainsi: {arity: arityOne},
	OpNull:         {arity: arityFlag},
	OpNotNull:      {arity: arityFlag},
	OpBetween:      {arity: arityPair},
	OpStartsWith:   {arity: arityOne, relational: true},
	OpStartsWithi:  {arity: arityOne},
	OpEndsWith:     {arity: arityOne, relational: true},
	OpEndsWithi:    {arity: arityOne},
}

// ParseOperator accepts an operator with or without its leading "$".
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}

	return op, nil
}

// Valid reports whether the operator is known.
func (o Operator) Valid() bool {
	_, ok := operators[o]

	return ok
}

// Relational reports whether the operator may be used on a relation path.
func (o Operator) Relational() bool {
	return operators[o].relational
}

// Key is the operator's bracket segment, e.g. "$eq".
func (o Operator) Key() string {
	return "$" + string(o)
}

func (o Operator) String() string {
	return string(o)
}

// Operators lists every known operator.
func Operators() []Operator {
	out := make([]Operator, 0, len(operators))
	for op := range operators {
		out = append(out, op)
	}

	slices.Sort(out)

	return out
}

// RelationalOperators lists the operators allowed on relation paths.
func RelationalOperators() []Operator {
	out := make([]Operator, 0, len(operators))

	for op, info := range operators {
		if info.relational {
			out = append(out, op)
		}
	}

	slices.Sort(out)

	return out
}
