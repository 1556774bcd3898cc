// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"net/http"

	"orcamentos_backend/platform/apperr"
	"orcamentos_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every response: { success, message, data? }.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON sends a success envelope with the given status code.
func JSON(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// OK sends a 200 OK success envelope.
func OK(c *gin.Context, message string, data any) {
	JSON(c, http.StatusOK, message, data)
}

// Created sends a 201 Created success envelope.
func Created(c *gin.Context, message string, data any) {
	JSON(c, http.StatusCreated, message, data)
}

// Error sends a failure envelope with the given status code and message.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, Envelope{Success: false, Message: message, Data: details})
}

// Abort sends a failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// HandleError maps domain errors to HTTP responses.
// Typed *apperr.Error values choose their status from Kind; anything else is
// an internal failure and is logged with full detail while the caller only
// sees a generic message. Returns true if an error was handled.
func HandleError(c *gin.Context, log *logger.Logger, err error) bool {
	if err == nil {
		return false
	}

	status := http.StatusInternalServerError
	message := "internal error"
	var details any
	if domainErr, ok := apperr.As(err); ok {
		status = domainErr.HTTPStatus()
		message = domainErr.PublicMessage()
		details = domainErr.Details
	}

	if status >= http.StatusInternalServerError && log != nil {
		log.WithContext(c.Request.Context()).HTTPError(c.Request.Method, c.Request.URL.Path, status, err, c.ClientIP())
	}

	Error(c, status, message, details)
	return true
}
