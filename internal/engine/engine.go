// Package engine evaluates alert rules against a stream of telemetry
// samples: rolling windows, condition evaluation, rule matching.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"fleetwatch/internal/alert"
	"fleetwatch/internal/metrics"
	"fleetwatch/internal/models"
	"fleetwatch/internal/store"
)

const maxConcurrentEvaluations = 10

// Engine is the telemetry-driven evaluation path. Each incoming sample
// updates the device's rolling window and re-evaluates only the rules that
// reference the sample's tag (edge-triggered, not polled). Evaluations are
// serialized per (rule, device) pair.
type Engine struct {
	store    store.Store
	registry store.DeviceRegistry
	manager  *alert.Manager
	windows  *WindowSet
	logger   *zap.Logger

	mu        sync.Mutex
	pairLocks map[string]*sync.Mutex

	sem *semaphore.Weighted
}

func New(st store.Store, registry store.DeviceRegistry, manager *alert.Manager, retention time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		store:     st,
		registry:  registry,
		manager:   manager,
		windows:   NewWindowSet(retention),
		logger:    logger,
		pairLocks: make(map[string]*sync.Mutex),
		sem:       semaphore.NewWeighted(maxConcurrentEvaluations),
	}
}

// Windows exposes the sample windows for read-only inspection.
func (e *Engine) Windows() *WindowSet { return e.windows }

// HandleSample records one telemetry sample and runs the evaluation path for
// it. Samples for a single device must be handed in arrival order; the feed
// adapters guarantee that.
func (e *Engine) HandleSample(ctx context.Context, s models.TelemetrySample) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	e.windows.Record(s)

	device, err := e.registry.GetDevice(s.DeviceID)
	if err != nil {
		e.logger.Debug("sample for unknown device, skipping evaluation",
			zap.String("device_id", s.DeviceID), zap.Error(err))
		return
	}

	// Store unavailability skips this cycle; the next sample retries.
	rules, err := e.store.GetRules()
	if err != nil {
		e.logger.Error("rule store unavailable, skipping evaluation cycle", zap.Error(err))
		return
	}

	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled || !rule.ReferencesTag(s.Tag) || !rule.Scope.Matches(device) {
			continue
		}
		e.evaluate(ctx, rule, device, s.Timestamp)
	}
}

// HandleBatch processes a batch of samples with bounded concurrency across
// devices. Per-device ordering is preserved by keeping each device's samples
// on one goroutine.
func (e *Engine) HandleBatch(ctx context.Context, samples []models.TelemetrySample) {
	byDevice := make(map[string][]models.TelemetrySample)
	for _, s := range samples {
		byDevice[s.DeviceID] = append(byDevice[s.DeviceID], s)
	}

	var wg sync.WaitGroup
	for _, deviceSamples := range byDevice {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func(batch []models.TelemetrySample) {
			defer wg.Done()
			defer e.sem.Release(1)
			for _, s := range batch {
				e.HandleSample(ctx, s)
			}
		}(deviceSamples)
	}
	wg.Wait()
}

func (e *Engine) evaluate(ctx context.Context, rule *models.AlertRule, device *models.Device, now time.Time) {
	lock := e.pairLock(rule.ID, device.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	matched, description := Match(rule, device, e.windows, now)
	metrics.EvaluationsTotal.Inc()
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())

	if !matched {
		return
	}
	e.manager.HandleVerdict(ctx, rule, device, description, now)
}

func (e *Engine) pairLock(ruleID, deviceID string) *sync.Mutex {
	key := ruleID + "\x00" + deviceID
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.pairLocks[key] = lock
	}
	return lock
}
