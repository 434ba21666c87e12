package service

import (
	"errors"
	"fmt"
)

var (
	ErrInteractionNotFound      = errors.New("interaction not found")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
	ErrFeedbackTokenInvalid     = errors.New("feedback token invalid")
	ErrFeedbackTokenExpired     = errors.New("feedback token expired")
	ErrFeedbackTokenUsed        = errors.New("feedback token already used")
	ErrUnknownPreset            = errors.New("unknown personality preset")
	ErrAllEnginesFailed         = errors.New("all strategy engines failed")
	ErrNoKnowledgeMatch         = errors.New("no knowledge match")
)

// ValidationError es entrada faltante o mal formada: 400, nunca se reintenta ni pasa por recuperacion.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ProviderError envuelve fallos del modelo o del almacen dentro del pipeline.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError se registra y nunca llega al cliente.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// RecoveryExhaustedError indica que ni el fallback estatico pudo construirse.
type RecoveryExhaustedError struct {
	ErrorID string
	Err     error
}

func (e *RecoveryExhaustedError) Error() string {
	return fmt.Sprintf("recovery exhausted (error id %s): %v", e.ErrorID, e.Err)
}
func (e *RecoveryExhaustedError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
