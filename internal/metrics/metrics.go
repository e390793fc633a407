// internal/metrics/metrics.go

// Package metrics exposes the service's prometheus instruments. Everything is
// registered on the default registry and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveLobbies tracks the current size of the lobby store.
	ActiveLobbies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizzatron_active_lobbies",
		Help: "Number of lobbies currently held in memory.",
	})

	// LobbiesCreated counts create_lobby operations.
	LobbiesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizzatron_lobbies_created_total",
		Help: "Total lobbies created since process start.",
	})

	// GamesStarted counts successful start_game transitions.
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizzatron_games_started_total",
		Help: "Total games started since process start.",
	})

	// LobbiesReaped counts idle lobbies evicted by the reaper.
	LobbiesReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizzatron_lobbies_reaped_total",
		Help: "Total idle lobbies evicted by the reaper.",
	})

	// EventsBroadcast counts events fanned out per event name.
	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzatron_events_broadcast_total",
		Help: "Total events broadcast to lobby rooms, by event name.",
	}, []string{"event"})
)
