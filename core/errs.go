package core

import "errors"

var (
	ErrInvalidWindowConfig        = errors.New("invalid window configuration")
	ErrNoWindowsProduced          = errors.New("no windows produced")
	ErrObjectiveDirectionMismatch = errors.New("objectives and directions must have the same length")
	ErrEmptyParameterSpace        = errors.New("empty parameter space")
)
