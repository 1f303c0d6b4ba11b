/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hearthline/hearthline/internal/app"
	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/config"
	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/types"
)

type Handlers struct {
	config  *config.AppConfig
	service *app.Service
	assets  *assetcache.Manager
	events  *EventStream
}

// NewHandlers wires the HTTP surface; assets may be nil when no origin is configured
func NewHandlers(cfg *config.AppConfig, service *app.Service, assets *assetcache.Manager, events *EventStream) *Handlers {
	if events == nil {
		events = NewEventStream()
	}
	return &Handlers{
		config:  cfg,
		service: service,
		assets:  assets,
		events:  events,
	}
}

func (h *Handlers) GetStatus(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service": h.config.App.Name,
		"version": h.config.App.Version,
		"status":  status,
	})
}

func (h *Handlers) GetConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Connectivity())
}

// ConnectivityRequest lets a client report its own online state
type ConnectivityRequest struct {
	Online *bool `json:"online"`
}

func (h *Handlers) PutConnectivity(c *gin.Context) {
	var req ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "online flag is required"})
		return
	}
	c.JSON(http.StatusOK, h.service.SetOnline(c.Request.Context(), *req.Online))
}

func (h *Handlers) ListAlerts(c *gin.Context) {
	alerts, err := h.service.Alerts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *Handlers) CreateAlert(c *gin.Context) {
	var in app.AlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert payload"})
		return
	}

	alert, err := h.service.CreateAlert(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handlers) ListMessages(c *gin.Context) {
	messages, err := h.service.Messages(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handlers) SendMessage(c *gin.Context) {
	var in app.MessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message payload"})
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *Handlers) ListDevices(c *gin.Context) {
	devices, err := h.service.Devices(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// DeviceRequest is the body of PUT /devices/:id
type DeviceRequest struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

func (h *Handlers) PutDevice(c *gin.Context) {
	var req DeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device payload"})
		return
	}

	device, err := h.service.RegisterDevice(c.Request.Context(), types.Device{
		ID:        c.Param("id"),
		Name:      req.Name,
		Connected: req.Connected,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

// ScanDevices returns discovered peers; they are not saved
func (h *Handlers) ScanDevices(c *gin.Context) {
	devices, err := h.service.ScanDevices(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handlers) Sync(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) GetStorage(c *gin.Context) {
	usage, err := h.service.Usage(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (h *Handlers) DeleteData(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.service.Reset(ctx); err != nil {
		writeError(c, err)
		return
	}
	logger.Logger(ctx).Info("local data reset via API")
	c.Status(http.StatusNoContent)
}

func (h *Handlers) GetGenerations(c *gin.Context) {
	if h.assets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset cache is not configured"})
		return
	}
	tags, err := h.assets.Generations(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":      h.assets.Active(),
		"generations": tags,
	})
}

// SyncEventRequest mirrors a background sync registration
type SyncEventRequest struct {
	Tag string `json:"tag" binding:"required"`
}

func (h *Handlers) PostSyncEvent(c *gin.Context) {
	if h.assets == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset cache is not configured"})
		return
	}
	var req SyncEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is required"})
		return
	}

	h.assets.HandleSyncEvent(c.Request.Context(), req.Tag)
	c.JSON(http.StatusAccepted, gin.H{"tag": req.Tag})
}
