package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope carries the failure and, for page events, the page state
// after the failed operation.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
	Data  any      `json:"data,omitempty"`
}
