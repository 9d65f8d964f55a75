package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sapliy/editorial-notifications/internal/api"
	"github.com/sapliy/editorial-notifications/internal/config"
	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/pkg/messaging"
	"github.com/sapliy/editorial-notifications/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the workflow event consumer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
		})
		if err != nil {
			return err
		}
		defer shutdownTracer(context.Background())

		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		worker := notification.NewWorker(notification.NewRouter(a.engine, logger.Logger), a.redis, logger.Logger)
		consumer := newConsumer(cfg.Events, logger)

		server := api.NewServer(a.engine, cfg.Auth.JWTSecret, logger.Logger)
		if hc, ok := consumer.(messaging.HealthChecker); ok {
			server.AddHealthCheck("events", hc.IsHealthy)
		}
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("notifications service starting", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		if consumer != nil {
			g.Go(func() error {
				defer consumer.Close()
				return consumer.Run(gctx, worker.ProcessEvent)
			})
		}
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down notifications service")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func newConsumer(c config.EventsConfig, logger *observability.Logger) messaging.Consumer {
	switch c.Transport {
	case config.TransportRabbitMQ:
		return messaging.NewRabbitConsumer(messaging.DefaultRabbitConfig(c.RabbitMQURL, c.Queue), logger.Logger)
	case config.TransportKafka:
		return messaging.NewKafkaConsumer(c.KafkaBrokers, c.KafkaTopic, c.KafkaGroup, logger.Logger)
	}
	logger.Info("workflow event consumer disabled")
	return nil
}

func newPublisher(c config.EventsConfig) (messaging.Publisher, error) {
	switch c.Transport {
	case config.TransportRabbitMQ:
		return messaging.NewRabbitPublisher(c.RabbitMQURL, c.Queue)
	case config.TransportKafka:
		return messaging.NewKafkaProducer(c.KafkaBrokers, c.KafkaTopic), nil
	}
	return nil, fmt.Errorf("events.transport %q cannot publish", c.Transport)
}
