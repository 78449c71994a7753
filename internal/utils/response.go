package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Codes used by the generic error helpers. Booking rejections carry their
// own codes through ErrorWithDetails.
const (
	CodeInvalidRequest  = "InvalidRequest"
	CodeUnauthenticated = "Unauthenticated"
	CodeAccessDenied    = "AccessDenied"
	CodeInternal        = "Internal"
)

// ResponseData is the envelope every endpoint answers with. Status mirrors
// the HTTP status; Code and Details are only set on errors.
type ResponseData struct {
	Status  int            `json:"status"`
	Message string         `json:"message"`
	Data    interface{}    `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func write(c *gin.Context, status int, body ResponseData) {
	body.Status = status
	c.JSON(status, body)
}

// Success sends a 200 with data.
func Success(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, ResponseData{Message: message, Data: data})
}

// Created sends a 201 with the new resource.
func Created(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusCreated, ResponseData{Message: message, Data: data})
}

// ErrorWithDetails sends an error carrying a machine-readable code and
// whatever the client needs to correct the request.
func ErrorWithDetails(c *gin.Context, statusCode int, code, errorMessage string, details map[string]any) {
	write(c, statusCode, ResponseData{
		Message: http.StatusText(statusCode),
		Error:   errorMessage,
		Code:    code,
		Details: details,
	})
}

func BadRequest(c *gin.Context, errorMessage string) {
	ErrorWithDetails(c, http.StatusBadRequest, CodeInvalidRequest, errorMessage, nil)
}

func Unauthorized(c *gin.Context, errorMessage string) {
	ErrorWithDetails(c, http.StatusUnauthorized, CodeUnauthenticated, errorMessage, nil)
}

func Forbidden(c *gin.Context, errorMessage string) {
	ErrorWithDetails(c, http.StatusForbidden, CodeAccessDenied, errorMessage, nil)
}

func InternalServerError(c *gin.Context, errorMessage string) {
	ErrorWithDetails(c, http.StatusInternalServerError, CodeInternal, errorMessage, nil)
}
