package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrRepairExhausted = errors.New("structured output repair attempts exhausted")
	ErrValidation      = errors.New("validation failed")
)
