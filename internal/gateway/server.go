package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/taskrelay/internal/telegram"
)

// ServerOpts holds configuration for the webhook HTTP server.
type ServerOpts struct {
	Gateway    *Gateway
	Dispatcher *Dispatcher
	Port       int
	Secret     string // appended to the webhook path when set
	Out        io.Writer
}

// Start launches the webhook server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts ServerOpts) error {
	if opts.Gateway == nil {
		return fmt.Errorf("gateway: server: gateway is required")
	}
	if opts.Dispatcher == nil {
		return fmt.Errorf("gateway: server: dispatcher is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8090
	}

	router := NewRouter(opts.Gateway, opts.Dispatcher, opts.Secret)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Webhook listening on %s\n", addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: server: %w", err)
	}
	return nil
}

// NewRouter builds the Gin router with the webhook and scheduler routes.
func NewRouter(gw *Gateway, dispatcher *Dispatcher, secret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	webhookPath := "/webhook"
	if secret != "" {
		webhookPath += "/" + secret
	}
	router.POST(webhookPath, handleWebhook(gw))

	// Scheduler entrypoints: parameterless, invoked by an external timer.
	router.POST("/internal/sweep", handleSweep(dispatcher))
	router.POST("/internal/summary", handleSummary(dispatcher))

	// Account-system hook for code verification.
	router.POST("/internal/verify", handleVerify(gw.Linker()))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	return router
}

// handleWebhook receives one platform Update. Every code path, including
// panics and undecodable bodies, ends in HTTP 200 — a failure status would
// only make the platform redeliver a payload we already can't process.
func handleWebhook(gw *Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("gateway: webhook: panic: %v", r)
				c.JSON(http.StatusOK, gin.H{"ok": false, "error": "internal error"})
			}
		}()

		var update telegram.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			log.Printf("gateway: webhook: decode update: %v", err)
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "undecodable update"})
			return
		}

		gw.HandleUpdate(c.Request.Context(), &update)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func handleSweep(d *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := d.RunReminderSweep(c.Request.Context())
		if err != nil {
			log.Printf("gateway: sweep endpoint: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":         true,
			"candidates": report.Candidates,
			"sent":       report.Sent,
			"skipped":    report.Skipped,
			"failed":     report.Failed,
		})
	}
}

func handleSummary(d *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.RunDailySummary(c.Request.Context()); err != nil {
			log.Printf("gateway: summary endpoint: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// verifyRequest is the account system's code-verification payload.
type verifyRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

func handleVerify(linker *Linker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "account_id and code are required"})
			return
		}
		ok, err := linker.VerifyConnectionCode(req.AccountID, req.Code)
		if err != nil {
			log.Printf("gateway: verify endpoint: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "verification failed"})
			return
		}
		if !ok {
			c.JSON(http.StatusOK, gin.H{"ok": false, "error": "invalid code"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
