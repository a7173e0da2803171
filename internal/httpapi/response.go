// Package httpapi is a thin gin-based contract adapter exposing the
// memory-engine-facing HTTP surface named in SPEC_FULL.md §6: bank, memory,
// recall, consolidate and async-operation routes. It deliberately does not
// implement the chat/agent/SSE transports described alongside it — those
// stay pure interfaces per §4.12 (see internal/collab).
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every route responds with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// SuccessResponse sends a 200 with data.
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, &Response{Success: true, Message: message, Data: data})
}

// CreatedResponse sends a 201 with data.
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, &Response{Success: true, Message: message, Data: data})
}

// ErrorResponse sends code with message and no data.
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, &Response{Success: false, Message: message})
}

func BadRequestError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

func NotFoundError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

func UnauthorizedError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

func TooManyRequestsError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusTooManyRequests, message)
}

func PayloadTooLargeError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusRequestEntityTooLarge, message)
}

func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}
