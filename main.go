package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/api"
	"chat-sync/internal/config"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/session"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, "chat-sync", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "chat_sync.audit", "chat-sync", cfg.Environment, cfg.UserID)

	apiClient := api.NewRestClient(cfg.APIBaseURL, cfg.AuthToken)
	tr := transport.New(transport.Config{
		URL:       cfg.WSURL,
		AuthToken: cfg.AuthToken,
		MinWait:   cfg.ReconnectMinWait,
		MaxWait:   cfg.ReconnectMaxWait,
	})

	sess := session.New(cfg, apiClient, tr, audit)
	if err := sess.Start(ctx); err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-sync"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", func(c *gin.Context) {
		state := tr.State()
		status := http.StatusOK
		if state != transport.StateConnected {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"connection": state.String()})
	})
	registerDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()
	log.Printf("chat-sync running user_id=%s http_port=%s", cfg.UserID, cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sess.Close(shutdownCtx); err != nil {
		log.Printf("session close error: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
}

// registerDebugRoutes wires debug-only endpoints.
func registerDebugRoutes(router *gin.Engine, audit *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		audit.Emit(c.Request.Context(), "INFO", "audit test", "")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
