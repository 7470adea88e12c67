package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/handlers"
	"github.com/imrishuroy/go-refundflow/internal/logger"
	"github.com/imrishuroy/go-refundflow/internal/middleware"
)

func setupRouter(cfg *config.Config, hc handlers.HandlerConfig, limiter *middleware.RateLimiter) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRefundRoutes(r, hc)

	return r
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc, err := buildHandlerConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}

	limiter := middleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, time.Minute, 5*time.Minute)
	defer limiter.Shutdown()

	r := setupRouter(cfg, hc, limiter)

	// if RUN_LOCAL is set, serve HTTP directly for development.
	if cfg.RunLocal {
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           gziphandler.GzipHandler(r),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("running local server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("local server failed")
			}
		}()

		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
		log.Info().Msg("server stopped")
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
