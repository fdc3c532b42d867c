package response

import (
	"net/http"

	"codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const jsonContentType = "application/json; charset=utf-8"

// Response represents a standard API response
type Response struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Details interface{}      `json:"details,omitempty"`
	TraceID string           `json:"trace_id,omitempty"`
}

// Success sends a successful response with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.Success,
		Message: "Success",
		Data:    data,
		TraceID: getTraceID(c),
	})
}

// Raw writes an already encoded JSON body without the envelope.
func Raw(c *gin.Context, body []byte) {
	c.Data(http.StatusOK, jsonContentType, body)
}

// Error sends an error response derived from err's code.
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)

	fields := []zap.Field{
		zap.Int("code", int(customErr.Code)),
		zap.String("message", customErr.Error()),
		zap.Any("details", customErr.Details),
	}
	if customErr.Code.HTTPStatus() >= http.StatusInternalServerError {
		fields = append(fields, zap.String("stack", customErr.Stack))
		logger.Error(c.Request.Context(), "request error", fields...)
	} else {
		logger.Warn(c.Request.Context(), "request rejected", fields...)
	}

	var details interface{}
	if len(customErr.Details) > 0 {
		details = customErr.Details
	}
	c.JSON(customErr.Code.HTTPStatus(), Response{
		Code:    customErr.Code,
		Message: customErr.Error(),
		Details: details,
		TraceID: getTraceID(c),
	})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	if message == "" {
		message = code.Message()
	}
	logger.Warn(c.Request.Context(), "request error",
		zap.Int("code", int(code)),
		zap.String("message", message),
	)
	c.JSON(code.HTTPStatus(), Response{
		Code:    code,
		Message: message,
		TraceID: getTraceID(c),
	})
}

// BadRequest sends a 400 bad request error
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.InvalidParams, message)
}

// NotFound sends a 404 not found error
func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, errors.NotFound, message)
}

func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	return ""
}
