package models

// APIErrorResponse represents a standard error response format.
type APIErrorResponse struct {
	StatusCode int    `json:"status_code"`         // HTTP status code
	ErrorCode  string `json:"error_code"`          // Error kind, e.g. NotFound
	Message    string `json:"message"`             // User-friendly error message
	Tool       string `json:"tool,omitempty"`      // Tool that failed, if any
	CallID     string `json:"call_id,omitempty"`   // Correlates with server logs
	FailedAt   string `json:"failed_at,omitempty"` // validated or dispatched
}
