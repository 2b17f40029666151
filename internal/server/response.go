package server

// SuccessResponse wraps successful API payloads
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// NewSuccessResponse creates a success envelope around data
func NewSuccessResponse(data interface{}) *SuccessResponse {
	return &SuccessResponse{
		Data: data,
	}
}

// ErrorResponse carries an API error message
type ErrorResponse struct {
	Message string `json:"message"`
}

// NewErrorResponse creates an error envelope with the given message
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		Message: message,
	}
}
