package handlers

import (
	"errors"
	"github.com/gin-gonic/gin"
	"log/slog"
	"multichat/internal/app/adapters/props"
	dprops "multichat/internal/app/domain/props"
	"net/http"
)

func (h *Handlers) storeError(c *gin.Context, op string, err error) {
	h.log.Error("Property store failed", err, slog.String("op", op))
	status := http.StatusInternalServerError
	if errors.Is(err, props.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.String(status, "error")
}

func (h *Handlers) GetChannelProp(c *gin.Context) {
	name := c.Param("prop_name")
	if !dprops.IsChannelKey(name) {
		c.String(http.StatusBadRequest, "invalid prop_name")
		return
	}

	val, err := h.store.GetChannelProp(c.Request.Context(), name)
	if err != nil {
		h.storeError(c, "get channel prop", err)
		return
	}
	c.JSON(http.StatusOK, val)
}

func (h *Handlers) SetChannelProp(c *gin.Context) {
	name := c.Param("prop_name")
	if !dprops.IsChannelKey(name) {
		c.String(http.StatusBadRequest, "invalid prop_name")
		return
	}

	var body propBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid JSON body")
		return
	}

	if name == dprops.Enabled && !h.allowEnabledToggle() {
		c.String(http.StatusOK, "wait")
		return
	}

	if err := h.store.SetChannelProp(c.Request.Context(), name, body.PropValue); err != nil {
		h.storeError(c, "set channel prop", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) allowEnabledToggle() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if !h.enabledAt.IsZero() && now.Sub(h.enabledAt) < h.cooldown {
		return false
	}
	h.enabledAt = now
	return true
}

func (h *Handlers) ListViewers(c *gin.Context) {
	viewers, err := h.store.AllViewers(c.Request.Context())
	if err != nil {
		h.storeError(c, "list viewers", err)
		return
	}
	c.JSON(http.StatusOK, viewers)
}

func (h *Handlers) DeleteViewer(c *gin.Context) {
	if err := h.store.DeleteViewer(c.Request.Context(), c.Param("username")); err != nil {
		h.storeError(c, "delete viewer", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) GetViewerProp(c *gin.Context) {
	name := c.Param("prop_name")
	if !dprops.IsViewerKey(name) {
		c.String(http.StatusBadRequest, "invalid prop_name")
		return
	}

	val, err := h.store.GetViewerProp(c.Request.Context(), c.Param("username"), name)
	if err != nil {
		h.storeError(c, "get viewer prop", err)
		return
	}
	c.JSON(http.StatusOK, val)
}

func (h *Handlers) SetViewerProp(c *gin.Context) {
	name := c.Param("prop_name")
	if !dprops.IsViewerKey(name) {
		c.String(http.StatusBadRequest, "invalid prop_name")
		return
	}

	var body propBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.store.SetViewerProp(c.Request.Context(), c.Param("username"), name, body.PropValue); err != nil {
		h.storeError(c, "set viewer prop", err)
		return
	}
	c.String(http.StatusOK, "ok")
}
