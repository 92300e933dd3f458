package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	appErrors "github.com/matchbook/notifier/pkg/errors"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func appErrorMessage(err error) string {
	if appErr := appErrors.FromError(err); appErr != nil {
		return appErr.Message
	}
	return ""
}
