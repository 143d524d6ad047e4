package tsp

import "errors"

var (
	ErrInfeasible        = errors.New("no feasible tour")
	ErrBudgetExhausted   = errors.New("search budget exhausted")
	ErrDimensionMismatch = errors.New("cost matrix is empty or does not match the precedence constraints")
	ErrStartOutOfRange   = errors.New("start index out of range")
	ErrBadPrecedence     = errors.New("malformed precedence constraints")
	ErrNegativeWeight    = errors.New("cost matrix contains a negative or NaN weight")
)
