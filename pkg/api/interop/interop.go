package interop

import "fmt"

type APIResponse[E any] struct {
	Success bool              `json:"success"`
	Data    E                 `json:"data"`
	Error   *string           `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func NewResponse[E any](data E) *APIResponse[E] {
	return &APIResponse[E]{Success: true, Data: data}
}

func NewErrorResponse(err any) *APIResponse[any] {
	message := fmt.Sprintf("%s", err)
	return &APIResponse[any]{Success: false, Error: &message}
}

// NewValidationErrorResponse reports invalid request fields by name.
func NewValidationErrorResponse(fields map[string]string) *APIResponse[any] {
	message := "invalid inputs"
	return &APIResponse[any]{Success: false, Error: &message, Fields: fields}
}
