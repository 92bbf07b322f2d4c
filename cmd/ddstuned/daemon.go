package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/ddstune/pkg/client"
	"github.com/dougsko/ddstune/pkg/config"
	"github.com/dougsko/ddstune/pkg/engine"
	"github.com/dougsko/ddstune/pkg/logging"
)

// TunerDaemon runs the core engine and the web front end. The web handlers
// reach the engine through its Unix socket like any other client.
type TunerDaemon struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	coreEngine   *engine.CoreEngine
	socketClient *client.SocketClient
	router       *gin.Engine
	webServer    *http.Server

	socketPath string
}

// NewTunerDaemon creates a new daemon instance
func NewTunerDaemon(cfg *config.Config) (*TunerDaemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	socketPath := cfg.API.UnixSocket
	if socketPath == "" {
		socketPath = "/tmp/ddstune.sock"
	}

	daemon := &TunerDaemon{
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		socketPath:   socketPath,
		socketClient: client.NewSocketClient(socketPath),
		coreEngine:   engine.NewCoreEngine(cfg, socketPath),
	}

	if err := daemon.setupWebServer(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup web server: %w", err)
	}
	return daemon, nil
}

// Start starts the daemon
func (d *TunerDaemon) Start() error {
	logging.Info("daemon", "Starting ddstuned daemon...")

	if err := d.coreEngine.Start(); err != nil {
		return fmt.Errorf("failed to start core engine: %w", err)
	}

	if !d.socketClient.IsConnected() {
		d.coreEngine.Stop()
		return fmt.Errorf("failed to connect to core engine socket")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		logging.Infof("daemon", "Starting web server on %s", d.webServer.Addr)
		if err := d.webServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("daemon", "Web server error: %v", err)
		}
	}()
	return nil
}

// Stop stops the daemon gracefully
func (d *TunerDaemon) Stop() error {
	logging.Info("daemon", "Stopping daemon...")

	d.cancel()

	if d.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.webServer.Shutdown(ctx); err != nil {
			logging.Warnf("daemon", "Web server shutdown error: %v", err)
		}
	}

	if d.coreEngine != nil {
		if err := d.coreEngine.Stop(); err != nil {
			logging.Warnf("daemon", "Core engine shutdown error: %v", err)
		}
	}

	d.wg.Wait()
	logging.Info("daemon", "Daemon stopped")
	return nil
}

// setupWebServer initializes the web server and routes
func (d *TunerDaemon) setupWebServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	router.GET("/", d.handleHome)
	router.GET("/ws", d.handleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/screen", d.handleGetScreen)
		api.PUT("/frequency", d.handleSetFrequency)
		api.PUT("/vfo", d.handleSelectVFO)
		api.PUT("/sideband", d.handleSetSideband)
		api.PUT("/step", d.handleSetStep)
		api.POST("/save", d.handleSave)
		api.GET("/history", d.handleGetHistory)
		api.GET("/history/stats", d.handleGetHistoryStats)
	}

	d.router = router
	d.webServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Web.BindAddress, d.config.Web.Port),
		Handler: router,
	}
	return nil
}

// requestLogger logs each request through the component logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("web", "Request", map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}
