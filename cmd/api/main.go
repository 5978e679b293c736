package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-outbox/config"
	"github.com/marcelsud/webhook-outbox/internal/http/chi"
	"github.com/marcelsud/webhook-outbox/metrics"
	"github.com/marcelsud/webhook-outbox/seeds"
	"github.com/marcelsud/webhook-outbox/webhook"
	redisrepo "github.com/marcelsud/webhook-outbox/webhook/redis"
)

const TIMEOUT = 30 * time.Second

/* The api binary is where all the wiring happens: dependencies are
 * initialized here and flow downward into the business packages
 * (api -> webhook -> storage), never the other way around
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := redisrepo.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer repo.Close(ctx)

	sender := webhook.NewSender(repo, nil)
	dispatcher := webhook.NewDispatcher(sender, cfg.Workers, cfg.QueueSize)
	dispatcher.SetHeartbeat(repo)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	s := webhook.NewService(repo, sender, dispatcher)

	scheduler := webhook.NewScheduler(repo, dispatcher, nil, webhook.SchedulerOptions{
		RetryInterval:   cfg.RetrySweepInterval(),
		CleanupInterval: cfg.CleanupInterval(),
		Retention:       cfg.Retention(),
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.SeedsFile != "" {
		loader := seeds.NewLoader()
		if err := loader.Load(cfg.SeedsFile); err != nil {
			fmt.Println(err)
			return
		}
		created, err := loader.Apply(ctx, s)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("Seeded %d endpoint(s) from %s\n", created, cfg.SeedsFile)
	}

	collector := metrics.NewStoreCollector(repo, func(ctx context.Context) ([]metrics.WorkerInfo, error) {
		heartbeats, err := repo.GetActiveWorkers(ctx)
		if err != nil {
			return nil, err
		}
		workers := make([]metrics.WorkerInfo, 0, len(heartbeats))
		for _, hb := range heartbeats {
			workers = append(workers, metrics.WorkerInfo{
				WorkerID:      hb.WorkerID,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
		return workers, nil
	})
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(ctx)

	r := chi.Handlers(s, exporter.ServeHTTP())
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server")
	}
}
