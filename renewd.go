// Package renewd provides a stable public API for embedding the ticket
// renewal scheduler in other programs.
package renewd

import (
	"log/slog"

	"github.com/loykin/renewd/internal/config"
	"github.com/loykin/renewd/internal/history"
	"github.com/loykin/renewd/internal/renew"
	"github.com/loykin/renewd/internal/scheduler"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Outcome = renew.Outcome

const (
	Success          = renew.Success
	TransientFailure = renew.TransientFailure
	PermanentFailure = renew.PermanentFailure
	CacheUnavailable = renew.CacheUnavailable
)

type Result = renew.Result

// Renewer is the credential-service boundary; implement it to plug in a
// different ticket service.
type Renewer = renew.Renewer

type HistorySink = history.Sink

// Scheduler is a thin facade over the internal scheduler.
type Scheduler = scheduler.Scheduler

// New builds a scheduler for cfg using the given renewer.
func New(cfg Config, lg *slog.Logger, r Renewer) *Scheduler {
	return scheduler.New(cfg, lg, r)
}

// NewHTTPRenewer returns the production ticket service client.
func NewHTTPRenewer(baseURL string) Renewer {
	return renew.NewHTTPRenewer(renew.HTTPConfig{BaseURL: baseURL})
}
