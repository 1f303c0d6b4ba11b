package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/store"
	"github.com/hearthline/hearthline/pkg/syncer"
	"github.com/hearthline/hearthline/pkg/types"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, assetcache.ErrUnknownGeneration):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStorageWriteFailed):
		return http.StatusInsufficientStorage
	case errors.Is(err, syncer.ErrSyncUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, assetcache.ErrFetchUnserviceable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	entry := logger.Logger(c.Request.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
