package contract

import "net/http"

// ErrorCode is the closed taxonomy callers can program retries against.
type ErrorCode string

const (
	CodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	CodeUnauthorizedCaller ErrorCode = "UNAUTHORIZED_CALLER"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeDependencyDown     ErrorCode = "DEPENDENCY_DOWN"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeInternal           ErrorCode = "INTERNAL"
)

// Error is the typed condition every gateway stage raises instead of a
// generic error. The HTTP boundary maps it to a status code and the
// canonical wire envelope; internal exception text never crosses the wire.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// HTTPStatus maps the error code to its canonical status. Replay conflicts
// deliberately map to 400, not 409: retried submissions are a caller bug,
// not a resource state disagreement.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidRequest, CodeConflict:
		return http.StatusBadRequest
	case CodeUnauthorizedCaller:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeDependencyDown:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetails returns a copy of the error carrying extra context for the
// caller. The receiver is not modified.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	out.Details = details
	return &out
}

func InvalidRequest(message string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: message}
}

func UnauthorizedCaller(message string) *Error {
	return &Error{Code: CodeUnauthorizedCaller, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func RateLimited(message string) *Error {
	return &Error{Code: CodeRateLimited, Message: message}
}

func DependencyDown(message string) *Error {
	return &Error{Code: CodeDependencyDown, Message: message}
}

// Internal returns the generic internal error. The underlying cause is for
// server-side logs only and is never placed in the message.
func Internal() *Error {
	return &Error{Code: CodeInternal, Message: "internal error"}
}

// ErrorResponse is the uniform failure wire shape.
type ErrorResponse struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id,omitempty"`
	Err       *Error `json:"error"`
}

// NewErrorResponse builds the canonical failure envelope for a request.
func NewErrorResponse(requestID string, e *Error) ErrorResponse {
	return ErrorResponse{OK: false, RequestID: requestID, Err: e}
}
