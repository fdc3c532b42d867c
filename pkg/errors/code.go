package errors

import "net/http"

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem catalogue errors
// 13000-13999: Judge & sandbox errors
const (
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Storage errors (10100-10299)
	DatabaseError ErrorCode = 10100
	CacheError    ErrorCode = 10200

	// Configuration errors (10400-10499)
	ConfigInvalid ErrorCode = 10400

	// Problem catalogue (12000-12099)
	ProblemNotFound         ErrorCode = 12000
	ProblemStoreUnavailable ErrorCode = 12001

	// Judge (13100-13199)
	JudgeQueueFull        ErrorCode = 13100
	JudgeSystemError      ErrorCode = 13101
	JudgeFleetUnavailable ErrorCode = 13102
	JudgeTransportFailed  ErrorCode = 13103
)

var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError: "Database operation failed",
	CacheError:    "Cache operation failed",

	ConfigInvalid: "Invalid configuration",

	ProblemNotFound:         "Problem not found",
	ProblemStoreUnavailable: "Problem store is unavailable",

	JudgeQueueFull:        "Judge queue is full, please try again later",
	JudgeSystemError:      "Judge system error",
	JudgeFleetUnavailable: "All compile servers are offline",
	JudgeTransportFailed:  "Compile server request failed",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return http.StatusOK
	case InvalidParams:
		return http.StatusBadRequest
	case NotFound, ProblemNotFound:
		return http.StatusNotFound
	case Timeout:
		return http.StatusGatewayTimeout
	case ServiceUnavailable, ProblemStoreUnavailable, JudgeFleetUnavailable, JudgeQueueFull:
		return http.StatusServiceUnavailable
	case JudgeTransportFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
