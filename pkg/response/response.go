package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body shape every API endpoint responds with. Code is zero
// on success and mirrors the HTTP status on failure, so clients read a
// single field either way.
type Envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// APIError carries an HTTP status alongside a client-facing message.
// Services return one when a failure maps to a specific status; anything
// else surfaces as an internal error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Constructors for the statuses the evaluation API distinguishes.

func NewBadRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

func NewNotFound(msg string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: msg}
}

// NewConflict reports an invalid state transition, such as activating an
// evaluation that is not queued.
func NewConflict(msg string) *APIError {
	return &APIError{Status: http.StatusConflict, Message: msg}
}

func NewServerError(msg string) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: msg}
}

// Success writes a 200 with data wrapped in the envelope.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Message: "ok", Data: data})
}

// Created writes a 201 for a newly stored resource.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Message: "created", Data: data})
}

// Accepted writes a 202 for work handed to the background delivery cycle.
func Accepted(c *gin.Context, msg string) {
	c.JSON(http.StatusAccepted, Envelope{Message: msg})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{Code: status, Message: msg})
}

// Error maps err onto the envelope: an APIError keeps its status, anything
// else becomes an internal error.
func Error(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fail(c, apiErr.Status, apiErr.Message)
		return
	}
	fail(c, http.StatusInternalServerError, err.Error())
}

func BadRequest(c *gin.Context, msg string) { fail(c, http.StatusBadRequest, msg) }

func Unauthorized(c *gin.Context, msg string) { fail(c, http.StatusUnauthorized, msg) }

func Forbidden(c *gin.Context, msg string) { fail(c, http.StatusForbidden, msg) }

func NotFound(c *gin.Context, msg string) { fail(c, http.StatusNotFound, msg) }

func ServerError(c *gin.Context, msg string) { fail(c, http.StatusInternalServerError, msg) }

func TooManyRequests(c *gin.Context, msg string) { fail(c, http.StatusTooManyRequests, msg) }
