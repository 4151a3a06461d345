// Package health backs the doctor command: provider reachability, model
// availability and store counts.
package health

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jeanpaul/secexpert/internal/store"
)

const probeTimeout = 10 * time.Second

// ModelLister is the part of a provider the probe needs.
type ModelLister interface {
	Name() string
	Models(ctx context.Context) ([]string, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (store.Stats, error)
}

type ProviderStatus struct {
	Provider    string
	Model       string
	Reachable   bool
	ModelListed bool
	Models      []string
	Error       string
	Latency     time.Duration
}

type StoreStatus struct {
	Path  string
	OK    bool
	Stats store.Stats
	Error string
}

type Report struct {
	Provider ProviderStatus
	Store    StoreStatus
}

func (r Report) Healthy() bool {
	return r.Provider.Reachable && r.Store.OK
}

// CheckProvider lists the provider's models. An endpoint that answers but
// does not list the configured model is reachable with ModelListed false.
func CheckProvider(ctx context.Context, p ModelLister, model string) ProviderStatus {
	s := ProviderStatus{Provider: p.Name(), Model: model}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	models, err := p.Models(ctx)
	s.Latency = time.Since(start)
	if err != nil {
		s.Error = friendlyError(err)
		return s
	}
	s.Reachable = true
	s.Models = models
	s.ModelListed = len(models) == 0 || slices.Contains(models, model)
	if !s.ModelListed {
		s.Error = fmt.Sprintf("model %q not found, available: %s", model, strings.Join(first(models, 8), ", "))
	}
	return s
}

func CheckStore(ctx context.Context, r StatsReader, path string) StoreStatus {
	s := StoreStatus{Path: path}
	stats, err := r.Stats(ctx)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.OK = true
	s.Stats = stats
	return s
}

func Check(ctx context.Context, p ModelLister, model string, r StatsReader, storePath string) Report {
	return Report{
		Provider: CheckProvider(ctx, p, model),
		Store:    CheckStore(ctx, r, storePath),
	}
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func friendlyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused (is the service running?)"
	case strings.Contains(msg, "no such host"):
		return "host not found (check the URL)"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return "connection timed out (service may be starting up)"
	}
	return msg
}
