package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/facegate/facegate/internal/adapters/dispatch"
	"github.com/facegate/facegate/internal/domain/access"
	"github.com/facegate/facegate/internal/domain/cache"
	"github.com/facegate/facegate/internal/domain/match"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/internal/perception"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Tuning is the snapshot of hot-reloadable perception thresholds in force
// while one batch is processed. The provider swaps snapshots atomically;
// a single batch never mixes two generations.
type Tuning struct {
	MatchThreshold          float64 // distance space, strict upper bound
	QualityFloor            float64 // minimum encoder quality to attempt a match
	DetectorConfidenceFloor float64 // detections below this are not encoded
}

// TuningProvider returns the current tuning snapshot.
type TuningProvider func() Tuning

// ZoneResolver maps a camera to the zone it guards, if any. Cameras
// without a zone binding still produce match events, just no decisions.
type ZoneResolver func(cameraID string) (zoneID string, ok bool)

// Stages runs detection, encoding, matching, and access evaluation for
// each batch. Matching and access checks are fast and in-memory, so they
// run inline on whichever worker finished encoding.
type Stages struct {
	detector   perception.Detector
	encoder    perception.Encoder
	encCache   *cache.EncodingCache
	matcher    *match.Engine
	controller *access.Controller
	dispatcher *dispatch.Dispatcher
	tuning     TuningProvider
	zones      ZoneResolver
	audit      perception.AuditSink

	log logger.Logger
}

// NewStages wires the batch processor. audit may be nil.
func NewStages(
	detector perception.Detector,
	encoder perception.Encoder,
	encCache *cache.EncodingCache,
	matcher *match.Engine,
	controller *access.Controller,
	dispatcher *dispatch.Dispatcher,
	tuning TuningProvider,
	zones ZoneResolver,
	audit perception.AuditSink,
) *Stages {
	return &Stages{
		detector:   detector,
		encoder:    encoder,
		encCache:   encCache,
		matcher:    matcher,
		controller: controller,
		dispatcher: dispatcher,
		tuning:     tuning,
		zones:      zones,
		audit:      audit,
		log:        logger.Get().Named("stages"),
	}
}

// ProcessBatch runs every frame of the batch in arrival order. A detector
// failure on one frame yields zero detections for that frame only; the
// rest of the batch proceeds.
func (s *Stages) ProcessBatch(ctx context.Context, b Batch) {
	tuning := s.tuning()
	metrics.RecordBatchProcessed(len(b.Frames))

	for _, frame := range b.Frames {
		s.processFrame(ctx, frame, tuning)
	}
}

func (s *Stages) processFrame(ctx context.Context, frame model.Frame, tuning Tuning) {
	detections := s.detect(ctx, frame)

	for _, det := range detections {
		if det.Confidence < tuning.DetectorConfidenceFloor {
			continue
		}
		metrics.RecordDetection()
		s.processFace(ctx, frame, det, tuning)
	}
}

// detect invokes the detector for one frame. Failure is transient and
// local: it is logged and the frame contributes zero detections.
func (s *Stages) detect(ctx context.Context, frame model.Frame) []model.Detection {
	start := time.Now()
	detections, err := s.detector.Detect(ctx, frame.Image)
	metrics.RecordDetectLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordDetectionFailure()
		metrics.RecordErrorByComponent("pipeline", "detect_failed")
		s.log.Warn(ctx, "detector failed for frame",
			logger.String("camera", frame.CameraID),
			logger.String("frame", frame.ID),
			logger.Error(err),
		)
		return nil
	}
	return detections
}

// processFace encodes (through the cache), matches, and, when the camera
// guards a zone, evaluates access for one detected face.
func (s *Stages) processFace(ctx context.Context, frame model.Frame, det model.Detection, tuning Tuning) {
	vector, quality, ok := s.encode(ctx, frame, det)
	if !ok {
		return
	}

	result, err := s.matcher.Match(ctx, match.Input{
		Vector:       vector,
		Quality:      quality,
		BBox:         det.BBox,
		CameraID:     frame.CameraID,
		Timestamp:    frame.TS,
		Threshold:    tuning.MatchThreshold,
		QualityFloor: tuning.QualityFloor,
	})
	if err != nil {
		s.log.Warn(ctx, "match failed",
			logger.String("camera", frame.CameraID),
			logger.Error(err),
		)
		return
	}

	s.dispatcher.Publish(model.MatchEvent{ID: uuid.NewString(), Result: result})

	zoneID, guarded := s.zones(frame.CameraID)
	if !guarded {
		return
	}

	decision := s.controller.CheckAccess(ctx, result.IdentityID, zoneID)
	s.dispatcher.Publish(model.DecisionEvent{ID: uuid.NewString(), Decision: decision})
	if s.audit != nil {
		s.audit.Record(ctx, decision)
	}
}

// encode resolves the face crop to a feature vector, consulting the
// encoding cache before paying for the encoder call. Encoder failure drops
// this face only.
func (s *Stages) encode(ctx context.Context, frame model.Frame, det model.Detection) ([]float64, float64, bool) {
	fingerprint := perception.Fingerprint(frame.Image, det.BBox)
	if vector, quality, ok := s.encCache.Get(fingerprint); ok {
		return vector, quality, true
	}

	start := time.Now()
	vector, quality, err := s.encoder.Encode(ctx, frame.Image, det.BBox)
	metrics.RecordEncodeLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordEncodeFailure()
		metrics.RecordErrorByComponent("pipeline", "encode_failed")
		s.log.Warn(ctx, "encoder failed for face",
			logger.String("camera", frame.CameraID),
			logger.String("frame", frame.ID),
			logger.Error(err),
		)
		return nil, 0, false
	}

	s.encCache.Put(fingerprint, vector, quality)
	return vector, quality, true
}
