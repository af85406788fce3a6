package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptolens/logger"
	"cryptolens/models"
	"cryptolens/reader"
)

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type ExchangeHealth struct {
	Healthy   bool   `json:"healthy"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type HealthReport struct {
	Status    string                    `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	Exchanges map[string]ExchangeHealth `json:"exchanges"`
}

// HealthCheck probes every exchange concurrently through the raw pool.
// An exchange that answers, even with "symbol not found", is healthy.
func (p *Pool) HealthCheck(ctx context.Context) HealthReport {
	ids := p.AvailableExchanges()
	report := HealthReport{Timestamp: time.Now(), Exchanges: make(map[string]ExchangeHealth, len(ids))}

	var mu sync.Mutex
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			start := time.Now()
			_, err := Do(ctx, p, id, "health_check", p.probeSymbol, func(ctx context.Context, c reader.Connector) (*models.Ticker, error) {
				return c.FetchTicker(ctx, p.probeSymbol)
			})
			h := ExchangeHealth{Healthy: true, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil && !errors.Is(err, reader.ErrSymbolNotFound) {
				h.Healthy = false
				h.Error = err.Error()
			}
			mu.Lock()
			report.Exchanges[id] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	healthy := 0
	for _, h := range report.Exchanges {
		if h.Healthy {
			healthy++
		}
	}
	report.Status = healthStatus(healthy, len(ids))

	p.log.WithComponent("exchange_pool").WithFields(logger.Fields{
		"status":  report.Status,
		"healthy": healthy,
		"total":   len(ids),
	}).Debug("health check complete")
	return report
}

// healthStatus is unhealthy with no responders, degraded under 75%.
func healthStatus(healthy, total int) string {
	switch {
	case healthy == 0:
		return HealthUnhealthy
	case float64(healthy) < float64(total)*0.75:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
