package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dougsko/ddstune/pkg/engine"
	"github.com/dougsko/ddstune/pkg/logging"
	"github.com/dougsko/ddstune/pkg/protocol"
)

// handleHome lists the API
func (d *TunerDaemon) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "ddstuned",
		"version": engine.Version,
		"endpoints": []string{
			"GET /api/v1/status",
			"GET /api/v1/screen",
			"PUT /api/v1/frequency",
			"PUT /api/v1/vfo",
			"PUT /api/v1/sideband",
			"PUT /api/v1/step",
			"POST /api/v1/save",
			"GET /api/v1/history",
			"GET /api/v1/history/stats",
			"GET /ws",
		},
	})
}

// respondStatus writes the status returned by a socket call
func respondStatus(c *gin.Context, status *protocol.Status, err error) {
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// handleGetStatus returns tuner status via socket
func (d *TunerDaemon) handleGetStatus(c *gin.Context) {
	status, err := d.socketClient.GetStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// handleGetScreen returns what the LCD shows
func (d *TunerDaemon) handleGetScreen(c *gin.Context) {
	screen := d.coreEngine.Screen()
	c.JSON(http.StatusOK, gin.H{"lines": screen[:]})
}

// handleSetFrequency tunes the active VFO via socket
func (d *TunerDaemon) handleSetFrequency(c *gin.Context) {
	var req struct {
		Frequency *int64 `json:"frequency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := d.socketClient.SetFrequency(*req.Frequency)
	respondStatus(c, status, err)
}

// handleSelectVFO switches VFOs via socket
func (d *TunerDaemon) handleSelectVFO(c *gin.Context) {
	var req struct {
		VFO string `json:"vfo" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := d.socketClient.SelectVFO(req.VFO)
	respondStatus(c, status, err)
}

// handleSetSideband sets LSB, USB or toggles via socket
func (d *TunerDaemon) handleSetSideband(c *gin.Context) {
	var req struct {
		Sideband string `json:"sideband" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := d.socketClient.SetSideband(req.Sideband)
	respondStatus(c, status, err)
}

// handleSetStep selects the tuning step via socket
func (d *TunerDaemon) handleSetStep(c *gin.Context) {
	var req struct {
		Step *int `json:"step" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := d.socketClient.SetStep(*req.Step)
	respondStatus(c, status, err)
}

// handleSave persists settings via socket
func (d *TunerDaemon) handleSave(c *gin.Context) {
	status, err := d.socketClient.Save()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "status": status})
}

// handleGetHistory returns recent journal entries via socket
func (d *TunerDaemon) handleGetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	entries, err := d.socketClient.GetHistory(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetHistoryStats returns journal statistics
func (d *TunerDaemon) handleGetHistoryStats(c *gin.Context) {
	journal := d.coreEngine.Journal()
	if journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": engine.ErrNoJournal.Error()})
		return
	}

	stats, err := journal.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is pushed to WebSocket clients
type wsMessage struct {
	Type   string          `json:"type"`
	Event  string          `json:"event,omitempty"`
	Source string          `json:"source,omitempty"`
	Status protocol.Status `json:"status"`
	Screen []string        `json:"screen"`
}

func (d *TunerDaemon) snapshot(kind, event, source string) wsMessage {
	screen := d.coreEngine.Screen()
	return wsMessage{
		Type:   kind,
		Event:  event,
		Source: source,
		Status: d.coreEngine.Status(),
		Screen: screen[:],
	}
}

// handleWebSocket pushes every tuning change, and meter movement twice a
// second, to the client
func (d *TunerDaemon) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("web", "WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logging.Debug("web", "WebSocket client connected", map[string]interface{}{
		"remote": c.Request.RemoteAddr,
	})

	events, unsubscribe := d.coreEngine.Subscribe()
	defer unsubscribe()

	// reader only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := d.snapshot("status", "", "")
	if err := conn.WriteJSON(last); err != nil {
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		var msg wsMessage
		select {
		case ev := <-events:
			msg = d.snapshot("event", string(ev.Kind), ev.Source)

		case <-ticker.C:
			msg = d.snapshot("meter", "", "")
			if msg.Status.Meter == last.Status.Meter {
				continue
			}

		case <-closed:
			logging.Debug("web", "WebSocket client disconnected")
			return

		case <-d.ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			logging.Warnf("web", "WebSocket write error: %v", err)
			return
		}
		last = msg
	}
}
