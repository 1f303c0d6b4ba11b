package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/logger"
)

// ServeAsset answers every unrouted GET or HEAD through the asset cache
func (h *Handlers) ServeAsset(c *gin.Context) {
	method := c.Request.Method
	if h.assets == nil || (method != http.MethodGet && method != http.MethodHead) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	ctx := c.Request.Context()
	req := c.Request.Clone(ctx)
	req.URL.Scheme = ""
	req.URL.Host = ""

	resp, err := h.assets.Fetch(ctx, req)
	if err != nil {
		if errors.Is(err, assetcache.ErrFetchUnserviceable) {
			writeError(c, err)
			return
		}
		writeError(c, errors.Join(assetcache.ErrFetchUnserviceable, err))
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	if method == http.MethodHead {
		return
	}
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logger.Logger(ctx).WithError(err).Debug("client went away while streaming asset")
	}
}
