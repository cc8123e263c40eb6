package handlers

import (
	"github.com/gin-gonic/gin"
	"net/http"
	"strconv"
)

func (h *Handlers) ClearChat(c *gin.Context) {
	h.hub.Clear()
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) ChatHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.History())
}

func (h *Handlers) Status(c *gin.Context) {
	st, ok := h.status.Status(c.Param("source"))
	if !ok {
		c.String(http.StatusNotFound, "unknown source")
		return
	}
	c.IndentedJSON(http.StatusOK, st)
}

func (h *Handlers) WS(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request, h.pageHash)
}

func (h *Handlers) WSNumClients(c *gin.Context) {
	c.String(http.StatusOK, strconv.Itoa(h.hub.Subscribers()))
}
