package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trunov/audiohub/cmd/migrate"
	"github.com/trunov/audiohub/internal/authclient"
	"github.com/trunov/audiohub/internal/blob"
	"github.com/trunov/audiohub/internal/cache"
	"github.com/trunov/audiohub/internal/config"
	"github.com/trunov/audiohub/internal/converter"
	"github.com/trunov/audiohub/internal/metrics"
	"github.com/trunov/audiohub/internal/notifier"
	"github.com/trunov/audiohub/internal/queue"
	"github.com/trunov/audiohub/internal/redisholder"
	"github.com/trunov/audiohub/internal/repository/storage"
	"github.com/trunov/audiohub/internal/transport/handler"
	"github.com/trunov/audiohub/internal/transport/router"
	use_case "github.com/trunov/audiohub/internal/use-case"
	"github.com/trunov/audiohub/internal/worker"
)

type App struct {
	HttpServer *http.Server

	convertWorker *worker.ConvertWorker
	notifyWorker  *worker.NotifyWorker

	uploadedConsumer  *queue.Consumer
	convertedConsumer *queue.Consumer
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	if err := migrate.Migrate(cfg.Database.DSN, migrate.Migrations); err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	holder, err := redisholder.Build(ctx, &cfg.Redis)
	if err != nil {
		return nil, err
	}
	dedup := cache.NewCache("audiohub:dedup", cfg.Worker.DedupTTL*time.Second, holder.Get())

	blobs, err := blob.NewStorage(&cfg.Blob)
	if err != nil {
		return nil, err
	}

	uploadedProducer, err := queue.NewProducer(cfg.Broker.URL, cfg.Broker.UploadedQueue)
	if err != nil {
		return nil, err
	}
	convertedProducer, err := queue.NewProducer(cfg.Broker.URL, cfg.Broker.ConvertedQueue)
	if err != nil {
		return nil, err
	}

	uploadedConsumer, err := queue.NewConsumer(cfg.Broker.URL, cfg.Broker.UploadedQueue)
	if err != nil {
		return nil, err
	}
	convertedConsumer, err := queue.NewConsumer(cfg.Broker.URL, cfg.Broker.ConvertedQueue)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	metrics.Serve(cfg.Metrics.Port, prometheus.DefaultGatherer)

	auth := authclient.New(
		cfg.Auth.Address,
		cfg.Auth.RequestTimeout*time.Second,
		cfg.Auth.MaxRetries,
		cfg.Auth.CacheDuration*time.Second,
	)

	conv := converter.New(cfg.FFmpeg.Path, cfg.FFmpeg.Bitrate)
	mail := notifier.New(cfg.Notifier.SMTPHost, cfg.Notifier.SMTPPort, cfg.Notifier.From, cfg.Notifier.Password)

	uc := use_case.New(blobs, uploadedProducer, repo)

	h := handler.New(uc, auth, cfg)
	r := router.NewRouter(h)

	s := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout * time.Second,
	}

	return &App{
		HttpServer:        s,
		convertWorker:     worker.NewConvertWorker(blobs, conv, convertedProducer, dedup, repo, m),
		notifyWorker:      worker.NewNotifyWorker(mail, repo, m),
		uploadedConsumer:  uploadedConsumer,
		convertedConsumer: convertedConsumer,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	uploaded, err := a.uploadedConsumer.Deliveries()
	if err != nil {
		return err
	}
	converted, err := a.convertedConsumer.Deliveries()
	if err != nil {
		return err
	}

	go a.convertWorker.Run(ctx, uploaded)
	go a.notifyWorker.Run(ctx, converted)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.HttpServer.Shutdown(shutdownCtx)
		a.uploadedConsumer.Close()
		a.convertedConsumer.Close()
	}()

	log.Printf("starting server on %s", a.HttpServer.Addr)
	if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
