package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
)

// parseIDQuery reads an optional UUID query parameter.
func parseIDQuery(c *gin.Context, key string) (*id.ID, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := id.Parse(val)
	if err != nil {
		return nil, apperror.NewValidation("invalid id format").WithDetail("field", key)
	}
	return &parsed, nil
}

// parseDateQuery reads an optional RFC 3339 or YYYY-MM-DD query parameter.
func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, apperror.NewValidation("invalid date format").WithDetail("field", key)
	}
	return &t, nil
}

// parseBoolQuery reads an optional boolean query parameter.
func parseBoolQuery(c *gin.Context, key string) *bool {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	parsed := val == "true"
	return &parsed
}
