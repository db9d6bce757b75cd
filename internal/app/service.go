// Package service provides the core engine service that wires the camera
// pipeline, identity index, access controller, and event dispatcher.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/adapters/dispatch"
	"github.com/facegate/facegate/internal/adapters/index"
	"github.com/facegate/facegate/internal/adapters/pipeline"
	"github.com/facegate/facegate/internal/domain/access"
	"github.com/facegate/facegate/internal/domain/cache"
	"github.com/facegate/facegate/internal/domain/match"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/internal/perception"
	"github.com/facegate/facegate/pkg/logger"
)

// auditSubscriberName identifies the dispatcher subscription feeding the
// external audit sink.
const auditSubscriberName = "audit-sink"

// Service composes the identity matching and access decision engine.
//
// The index, cache, controller, and dispatcher are shared across every
// camera pipeline; each camera owns only its batcher. Tuning values are
// swapped atomically so the pipeline picks up changes without a restart.
type Service struct {
	mu sync.RWMutex

	// Core components
	idx        *index.FlatIndex
	encCache   *cache.EncodingCache
	matcher    *match.Engine
	controller *access.Controller
	dispatcher *dispatch.Dispatcher
	queue      *pipeline.WorkQueue
	pool       *pipeline.Pool
	stages     *pipeline.Stages
	batchers   map[string]*pipeline.Batcher

	// External collaborators
	detector perception.Detector
	encoder  perception.Encoder
	repo     perception.IdentityRepository
	audit    perception.AuditSink

	// Configuration
	workerCount    int
	workQueueSize  int
	batchSize      int
	batchTimeout   time.Duration
	frameQueueCap  int
	dispatchBuffer int
	cacheCapacity  int
	cacheTTL       time.Duration
	metric         index.Metric
	maxDistance    float64
	tieEpsilon     float64
	initialZones   []access.Zone
	initialGrants  []access.Grant

	// Hot-reloadable state
	tuning      atomic.Pointer[pipeline.Tuning]
	cameraZones atomic.Pointer[map[string]string]

	// State
	started bool
	runCtx  context.Context

	// Logging
	log logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		batchers:       make(map[string]*pipeline.Batcher),
		workerCount:    runtime.NumCPU(),
		workQueueSize:  64,
		batchSize:      4,
		batchTimeout:   100 * time.Millisecond,
		frameQueueCap:  32,
		dispatchBuffer: 256,
		cacheCapacity:  10_000,
		cacheTTL:       30 * time.Second,
		metric:         index.Euclidean,
		maxDistance:    2.0,
		tieEpsilon:     1e-6,
	}
	s.tuning.Store(&pipeline.Tuning{
		MatchThreshold:          0.6,
		QualityFloor:            0.3,
		DetectorConfidenceFloor: 0.5,
	})
	empty := map[string]string{}
	s.cameraZones.Store(&empty)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.detector == nil || s.encoder == nil {
		return ErrMissingPerception
	}

	if s.log == nil {
		s.log = logger.Get()
	}

	s.log.Info(ctx, "starting access engine...")

	s.idx = index.NewFlatIndex(index.WithMetric(s.metric))
	s.encCache = cache.New(
		cache.WithCapacity(s.cacheCapacity),
		cache.WithTTL(s.cacheTTL),
	)
	s.matcher = match.New(s.idx,
		match.WithMaxDistance(s.maxDistance),
		match.WithTieEpsilon(s.tieEpsilon),
	)
	s.controller = access.New()
	s.dispatcher = dispatch.New(
		dispatch.WithBufferSize(s.dispatchBuffer),
		dispatch.WithLogger(s.log.Named("dispatch")),
	)

	if err := s.loadGallery(ctx); err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	if s.audit != nil {
		err := s.dispatcher.Subscribe(ctx, auditSubscriberName, func(ctx context.Context, e model.Event) {
			if de, ok := e.(model.DecisionEvent); ok {
				s.audit.Record(ctx, de.Decision)
			}
		}, model.KindDecision)
		if err != nil {
			return fmt.Errorf("register audit subscriber: %w", err)
		}
	}

	s.stages = pipeline.NewStages(
		s.detector,
		s.encoder,
		s.encCache,
		s.matcher,
		s.controller,
		s.dispatcher,
		s.currentTuning,
		s.resolveZone,
		nil, // audit flows through the dispatcher subscription
	)
	s.queue = pipeline.NewWorkQueue(s.workQueueSize)
	s.pool = pipeline.NewPool(s.workerCount, s.queue, s.stages)
	s.pool.Start(ctx)

	s.runCtx = ctx
	s.started = true
	s.log.Info(ctx, "access engine started",
		logger.Int("workers", s.workerCount),
		logger.Int("identities", s.idx.Count(ctx)),
		logger.Int("zones", s.controller.ZoneCount()),
	)

	return nil
}

// loadGallery rebuilds the index and rules from the identity repository
// and the statically configured zones and grants. Config grants are
// layered after repository grants, so config wins on conflict.
func (s *Service) loadGallery(ctx context.Context) error {
	grants := make([]access.Grant, 0, len(s.initialGrants))
	var entries []index.Entry

	if s.repo != nil {
		identities, err := s.repo.ListActiveIdentities(ctx)
		if err != nil {
			return fmt.Errorf("list identities: %w", err)
		}
		for _, id := range identities {
			if !id.Matchable() {
				continue
			}
			for _, enc := range id.Encodings {
				entries = append(entries, index.Entry{IdentityID: id.ID, Vector: enc.Vector})
			}
			perms, err := s.repo.GetPermissions(ctx, id.ID)
			if err != nil {
				return fmt.Errorf("permissions for %s: %w", id.ID, err)
			}
			for zoneID, level := range perms {
				grants = append(grants, access.Grant{IdentityID: id.ID, ZoneID: zoneID, Level: level})
			}
		}
	}

	grants = append(grants, s.initialGrants...)

	if err := s.idx.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	s.controller.ReplaceRules(s.initialZones, grants)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.log.Info(ctx, "stopping access engine...")

	for _, b := range s.batchers {
		b.Stop()
	}
	s.batchers = make(map[string]*pipeline.Batcher)

	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Close()
	}

	s.started = false
	s.log.Info(ctx, "access engine stopped")
}

// SubmitFrame enqueues a frame for the camera's pipeline. The first frame
// from a camera lazily creates its batcher.
func (s *Service) SubmitFrame(ctx context.Context, cameraID string, image []byte, ts time.Time) error {
	if cameraID == "" {
		return ErrUnknownCamera
	}

	s.mu.RLock()
	started := s.started
	b := s.batchers[cameraID]
	s.mu.RUnlock()

	if !started {
		return ErrNotStarted
	}

	if b == nil {
		var err error
		b, err = s.ensureBatcher(cameraID)
		if err != nil {
			return err
		}
	}

	b.Submit(model.Frame{
		ID:       uuid.NewString(),
		CameraID: cameraID,
		Image:    image,
		TS:       ts,
	})
	return nil
}

// ensureBatcher creates and starts the camera's batcher exactly once.
func (s *Service) ensureBatcher(cameraID string) (*pipeline.Batcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil, ErrNotStarted
	}
	if b, ok := s.batchers[cameraID]; ok {
		return b, nil
	}

	b := pipeline.NewBatcher(cameraID, s.queue,
		pipeline.WithBatchSize(s.batchSize),
		pipeline.WithBatchTimeout(s.batchTimeout),
		pipeline.WithFrameQueueCapacity(s.frameQueueCap),
		pipeline.WithBatcherLogger(s.log.Named("batcher")),
		pipeline.WithDropFunc(func(frame model.Frame) {
			s.dispatcher.Publish(model.FrameDropEvent{
				ID:       uuid.NewString(),
				CameraID: frame.CameraID,
				FrameID:  frame.ID,
				TS:       frame.TS,
			})
		}),
	)
	b.Start(s.runCtx)
	s.batchers[cameraID] = b
	return b, nil
}

// StopCamera cancels a camera's ingestion. In-flight batches finish or are
// abandoned within the pool's grace period; shared state is untouched.
func (s *Service) StopCamera(cameraID string) error {
	s.mu.Lock()
	b, ok := s.batchers[cameraID]
	if ok {
		delete(s.batchers, cameraID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrUnknownCamera
	}
	b.Stop()
	return nil
}

// RequestAccess evaluates a synchronous decision outside the camera
// pipeline, e.g. a badge-swipe fallback. identityID may be empty for an
// unidentified subject. The decision is published and audited like any
// pipeline decision.
func (s *Service) RequestAccess(ctx context.Context, identityID, zoneID string) model.AccessDecision {
	s.mu.RLock()
	controller := s.controller
	dispatcher := s.dispatcher
	s.mu.RUnlock()

	if controller == nil {
		// Not started: fail closed with the only reason that fits.
		return model.AccessDecision{
			Granted:    false,
			IdentityID: identityID,
			ZoneID:     zoneID,
			Reason:     model.ReasonZoneUnknown,
			Timestamp:  time.Now(),
		}
	}

	decision := controller.CheckAccess(ctx, identityID, zoneID)
	if dispatcher != nil {
		dispatcher.Publish(model.DecisionEvent{ID: uuid.NewString(), Decision: decision})
	}
	return decision
}

// Enroll adds one encoding for an identity to the live index.
func (s *Service) Enroll(ctx context.Context, identityID string, vector []float64, quality float64) error {
	if identityID == "" {
		return ErrEmptyIdentity
	}

	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx == nil {
		return ErrNotStarted
	}

	if err := idx.Insert(ctx, identityID, vector); err != nil {
		return fmt.Errorf("enroll %s: %w", identityID, err)
	}
	s.log.Info(ctx, "identity enrolled", logger.String("identity", identityID), logger.Float64("quality", quality))
	return nil
}

// Revoke removes an identity from the live index and drops its grants.
func (s *Service) Revoke(ctx context.Context, identityID string) error {
	if identityID == "" {
		return ErrEmptyIdentity
	}

	s.mu.RLock()
	idx := s.idx
	controller := s.controller
	s.mu.RUnlock()
	if idx == nil {
		return ErrNotStarted
	}

	idx.Remove(ctx, identityID)
	controller.RevokePermissions(identityID)
	s.log.Info(ctx, "identity revoked", logger.String("identity", identityID))
	return nil
}

// GrantPermission assigns a level for (identity, zone) on the live rules.
func (s *Service) GrantPermission(identityID, zoneID string, level model.Level) error {
	s.mu.RLock()
	controller := s.controller
	s.mu.RUnlock()
	if controller == nil {
		return ErrNotStarted
	}
	controller.GrantPermission(identityID, zoneID, level)
	return nil
}

// ReplaceRules swaps the full zone and grant configuration atomically.
// Decisions in flight see either the old or the new rules, never a mix.
func (s *Service) ReplaceRules(zones []access.Zone, grants []access.Grant) error {
	s.mu.RLock()
	controller := s.controller
	s.mu.RUnlock()
	if controller == nil {
		return ErrNotStarted
	}
	controller.ReplaceRules(zones, grants)
	return nil
}

// BindCamera points a camera at the zone it guards, atomically.
func (s *Service) BindCamera(cameraID, zoneID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.cameraZones.Load()
	next := make(map[string]string, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[cameraID] = zoneID
	s.cameraZones.Store(&next)
}

// UpdateTuning hot-swaps the perception thresholds, plus whichever cache
// and batching knobs the options carry, without restarting the pipeline.
// The thresholds are applied as a whole snapshot; the other knobs only
// when set.
func (s *Service) UpdateTuning(t pipeline.Tuning, opts ...TuningOption) {
	snapshot := t
	s.tuning.Store(&snapshot)

	var u tuningUpdate
	for _, opt := range opts {
		opt(&u)
	}

	s.mu.Lock()
	if u.batchSize > 0 {
		s.batchSize = u.batchSize
	}
	if u.batchTimeout > 0 {
		s.batchTimeout = u.batchTimeout
	}
	encCache := s.encCache
	batchers := make([]*pipeline.Batcher, 0, len(s.batchers))
	for _, b := range s.batchers {
		batchers = append(batchers, b)
	}
	s.mu.Unlock()

	if encCache != nil {
		if u.cacheTTL > 0 {
			encCache.SetTTL(u.cacheTTL)
		}
		if u.cacheCapacity > 0 {
			encCache.SetCapacity(u.cacheCapacity)
		}
	}
	if u.batchSize > 0 || u.batchTimeout > 0 {
		for _, b := range batchers {
			b.SetParams(u.batchSize, u.batchTimeout)
		}
	}
}

// RegisterAlertSink subscribes a handler to denied decisions: unidentified
// faces, insufficient levels, and out-of-schedule attempts.
func (s *Service) RegisterAlertSink(ctx context.Context, name string, fn func(model.AccessDecision)) error {
	s.mu.RLock()
	dispatcher := s.dispatcher
	s.mu.RUnlock()
	if dispatcher == nil {
		return ErrNotStarted
	}

	return dispatcher.Subscribe(ctx, name, func(_ context.Context, e model.Event) {
		de, ok := e.(model.DecisionEvent)
		if !ok || !de.Denied() {
			return
		}
		switch de.Decision.Reason {
		case model.ReasonUnidentified, model.ReasonInsufficientLevel, model.ReasonOutsideSchedule:
			fn(de.Decision)
		}
	}, model.KindDecision)
}

// currentTuning is the TuningProvider handed to the pipeline.
func (s *Service) currentTuning() pipeline.Tuning {
	return *s.tuning.Load()
}

// resolveZone is the ZoneResolver handed to the pipeline.
func (s *Service) resolveZone(cameraID string) (string, bool) {
	zones := *s.cameraZones.Load()
	zoneID, ok := zones[cameraID]
	return zoneID, ok
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"cameras":     len(s.batchers),
	}

	if s.started {
		stats["identities"] = s.idx.Count(ctx)
		stats["zones"] = s.controller.ZoneCount()
		stats["cacheEntries"] = s.encCache.Len()
		stats["workQueueLength"] = s.queue.Len()
		stats["eventsPublished"] = s.dispatcher.Stats().TotalPublished
	}

	return stats
}
