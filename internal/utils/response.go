package utils

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ResponseData is the standard API envelope.
type ResponseData struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes page counts from a total row count.
func NewPagination(page, limit int, total int64) *Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return &Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// Success sends a standard success response.
func Success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, ResponseData{Success: true, Message: message, Data: data})
}

// SuccessList sends a paginated list response.
func SuccessList(c *gin.Context, message string, data interface{}, p *Pagination) {
	c.JSON(http.StatusOK, ResponseData{Success: true, Message: message, Data: data, Pagination: p})
}

// Created sends a standard resource created response.
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, ResponseData{Success: true, Message: message, Data: data})
}

// Error sends a standard error response.
func Error(c *gin.Context, statusCode int, message string, errs ...string) {
	c.JSON(statusCode, ResponseData{Success: false, Message: message, Errors: errs})
}

// BadRequest sends a 400 Bad Request error response.
func BadRequest(c *gin.Context, message string, errs ...string) {
	Error(c, http.StatusBadRequest, message, errs...)
}

// Unauthorized sends a 401 Unauthorized error response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// NotFound sends a 404 Not Found error response. Also used for
// resources owned by another user, so existence is never confirmed.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// TooManyRequests sends a 429 with a Retry-After hint in seconds.
func TooManyRequests(c *gin.Context, message string, retryAfterSeconds int) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	Error(c, http.StatusTooManyRequests, message)
}

// InternalServerError sends a 500 Internal Server Error response.
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}
