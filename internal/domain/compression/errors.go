package compression

import (
	"errors"
	"fmt"
)

// Error kinds raised by the engine.
var (
	ErrAnalysis           = errors.New("analysis failed")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrTransformation     = errors.New("transformation failed")
	ErrIO                 = errors.New("i/o failure")
	ErrNotCompressed      = errors.New("data is not compressed")
	ErrInvalidLevel       = errors.New("invalid compression level")
)

// ErrorKind classifies a CompressionError.
type ErrorKind string

const (
	KindAnalysis           ErrorKind = "analysis"
	KindUnsupportedFeature ErrorKind = "unsupported_feature"
	KindTransformation     ErrorKind = "transformation"
	KindIO                 ErrorKind = "io"
)

// CompressionError carries the kind, the failing operation and the file involved.
type CompressionError struct {
	Kind      ErrorKind
	Operation string
	FilePath  string
	Err       error
}

func (e *CompressionError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for file %s: %v", e.Kind, e.Operation, e.FilePath, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *CompressionError) Is(target error) bool {
	switch e.Kind {
	case KindAnalysis:
		return target == ErrAnalysis
	case KindUnsupportedFeature:
		return target == ErrUnsupportedFeature
	case KindTransformation:
		return target == ErrTransformation
	case KindIO:
		return target == ErrIO
	}
	return false
}

// Fatal reports whether the error ends the run with success=false.
func (e *CompressionError) Fatal() bool {
	return e.Kind == KindAnalysis || e.Kind == KindIO
}

func NewAnalysisError(operation, filePath string, err error) *CompressionError {
	return &CompressionError{Kind: KindAnalysis, Operation: operation, FilePath: filePath, Err: err}
}

func NewUnsupportedFeatureError(operation, filePath string, err error) *CompressionError {
	return &CompressionError{Kind: KindUnsupportedFeature, Operation: operation, FilePath: filePath, Err: err}
}

func NewTransformationError(operation, filePath string, err error) *CompressionError {
	return &CompressionError{Kind: KindTransformation, Operation: operation, FilePath: filePath, Err: err}
}

func NewIOError(operation, filePath string, err error) *CompressionError {
	return &CompressionError{Kind: KindIO, Operation: operation, FilePath: filePath, Err: err}
}
