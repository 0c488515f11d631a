package response

// Envelope is the error body returned by middleware.
type Envelope struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(code, message string, details interface{}) Envelope {
	return Envelope{
		Success: false,
		Code:    code,
		Message: message,
		Details: details,
	}
}
