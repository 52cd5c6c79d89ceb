// Package resource exposes repository-backed entities over gin with the
// shared pagination and filter query contract.
package resource

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/repository"
)

// ErrValidation marks errors caused by bad client input.
var ErrValidation = errors.New("validation failed")

// ErrConflict marks errors caused by a uniqueness or state conflict.
var ErrConflict = errors.New("conflict")

// ParseQuery reads page, page_size, search and the declared filter keys from
// the query string.
func ParseQuery(c *gin.Context, filters ...string) repository.Query {
	q := repository.Query{Search: c.Query("search")}
	q.Page, _ = strconv.Atoi(c.Query("page"))
	q.PageSize, _ = strconv.Atoi(c.Query("page_size"))
	for _, key := range filters {
		if v := c.Query(key); v != "" {
			q = q.WithFilter(key, v)
		}
	}
	return q.Normalize()
}

// ParseID reads the :id path parameter, writing a 400 response when invalid.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError responds with the status for err. Server errors are logged and
// their detail hidden from the client.
func WriteError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
