// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoSymbols            = errors.New("no stock symbols were found")
	ErrInvalidSymbol        = errors.New("invalid stock symbol")
	ErrInsufficientSymbols  = errors.New("insufficient stock symbols")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrMaxToolHops          = errors.New("maximum tool hops exceeded")
	ErrMaxSteps             = errors.New("maximum workflow steps exceeded")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrToolsUnsupported     = errors.New("model does not support tool calls")
	ErrEmptyResponse        = errors.New("empty model response")
	ErrTurnFailed           = errors.New("turn failed")
	ErrUnknownCategory      = errors.New("unknown question category")
	ErrUnknownProvider      = errors.New("unknown model provider")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDataNotFound         = errors.New("data not found")
	ErrDatabaseError        = errors.New("database error")
	ErrStoreUnavailable     = errors.New("document store unavailable")
	ErrInputValidation      = errors.New("input validation failed")
	ErrMissingCredentials   = errors.New("missing credentials")
)

// GenericFailureMessage is shown to the user for any failure that does not
// carry its own chat message.
const GenericFailureMessage = "An error occurred while processing your request."

// FinanceError is a domain error that carries a user-facing message.
type FinanceError interface {
	error
	ChatMessage() string
}

// MissingStockSymbolError is returned when a request names no stock symbol.
type MissingStockSymbolError struct {
	Reason string
}

func (e *MissingStockSymbolError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return ErrNoSymbols.Error()
}

func (e *MissingStockSymbolError) Unwrap() error {
	return ErrNoSymbols
}

// ChatMessage implements FinanceError.
func (e *MissingStockSymbolError) ChatMessage() string {
	return "It looks like you haven't provided any stock symbols. To assist you, could you please " +
		"specify a stock symbol, such as **AAPL** for Apple or **TSLA** for Tesla? " +
		"I'm here to help with your financial queries!"
}

// NewMissingStockSymbolError creates a new MissingStockSymbolError.
func NewMissingStockSymbolError() *MissingStockSymbolError {
	return &MissingStockSymbolError{}
}

// InsufficientStockSymbolsError is returned when a comparison names fewer than two symbols.
type InsufficientStockSymbolsError struct {
	Got int
}

func (e *InsufficientStockSymbolsError) Error() string {
	return fmt.Sprintf("comparison needs at least two stock symbols, got %d", e.Got)
}

func (e *InsufficientStockSymbolsError) Unwrap() error {
	return ErrInsufficientSymbols
}

// ChatMessage implements FinanceError.
func (e *InsufficientStockSymbolsError) ChatMessage() string {
	return "To compare stocks, I need at least two stock symbols. For example, you could compare " +
		"**AAPL** (Apple) with **GOOG** (Google). Could you please provide at least two symbols " +
		"for me to analyze and compare?"
}

// NewInsufficientStockSymbolsError creates a new InsufficientStockSymbolsError.
func NewInsufficientStockSymbolsError(got int) *InsufficientStockSymbolsError {
	return &InsufficientStockSymbolsError{Got: got}
}

// InvalidStockSymbolError is returned when the provider has no history for a symbol.
type InvalidStockSymbolError struct {
	Symbol string
}

func (e *InvalidStockSymbolError) Error() string {
	return fmt.Sprintf("invalid stock symbol: %s", e.Symbol)
}

func (e *InvalidStockSymbolError) Unwrap() error {
	return ErrInvalidSymbol
}

// ChatMessage implements FinanceError.
func (e *InvalidStockSymbolError) ChatMessage() string {
	return fmt.Sprintf("The stock symbol **%s** seems to be invalid. Please double-check the symbol "+
		"and try again. For instance, **AAPL** represents Apple, and **MSFT** represents Microsoft. "+
		"Let me know the correct symbol, and I'll assist you further!", e.Symbol)
}

// NewInvalidStockSymbolError creates a new InvalidStockSymbolError.
func NewInvalidStockSymbolError(symbol string) *InvalidStockSymbolError {
	return &InvalidStockSymbolError{Symbol: symbol}
}

// AsFinanceError returns the first FinanceError in err's chain.
func AsFinanceError(err error) (FinanceError, bool) {
	var fe FinanceError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ChatMessage converts err into text that is safe to show to the user.
func ChatMessage(err error) string {
	if fe, ok := AsFinanceError(err); ok {
		return fe.ChatMessage()
	}
	return GenericFailureMessage
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NodeError reports a failure inside a workflow node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError creates a new NodeError.
func NewNodeError(node string, err error) *NodeError {
	return &NodeError{Node: node, Err: err}
}

// ModelError represents a failure from a language model backend.
type ModelError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error [%s] %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a new ModelError.
func NewModelError(provider, operation string, err error) *ModelError {
	return &ModelError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	}
}

// DataError represents a market data error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
