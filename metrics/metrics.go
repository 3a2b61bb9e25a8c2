// Package metrics holds the Prometheus collectors of the reputation bot.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AwardsTotal counts score changes by source (award, manual, restore).
	AwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_awards_total",
		Help: "Total score changes by source",
	}, []string{"source"})

	// RejectionsTotal counts award attempts dropped by the eligibility gate.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_rejections_total",
		Help: "Total award attempts rejected by reason",
	}, []string{"reason"})

	// SweepUsersTotal counts users examined by maintenance sweeps.
	SweepUsersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_sweep_users_total",
		Help: "Total users checked by maintenance sweeps by status",
	}, []string{"status"})

	// SweepsTotal counts sweep runs by result.
	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_sweeps_total",
		Help: "Total maintenance sweeps by result",
	}, []string{"result"})

	// LeaderboardPublishesTotal counts publish attempts by outcome.
	LeaderboardPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_leaderboard_publishes_total",
		Help: "Total leaderboard publishes by outcome",
	}, []string{"outcome"})

	// NotificationFailuresTotal counts notifications that could not be delivered.
	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reputation_notification_failures_total",
		Help: "Total failed notifications by channel",
	}, []string{"channel"})
)

// Serve exposes /metrics on addr until ctx is cancelled. An empty addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Printf("Metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}
