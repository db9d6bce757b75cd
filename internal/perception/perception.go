// Package perception defines the contracts for the external detection and
// encoding capabilities, the identity repository, and the audit sink.
//
// The models themselves live outside this process; the core consumes them
// as capabilities that map an image region to detections and feature
// vectors. Each call may fail independently: a detector failure yields zero
// detections for that frame, an encoder failure drops that face.
package perception

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/facegate/facegate/internal/domain/model"
)

// Detector finds face regions in a frame image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]model.Detection, error)
}

// Encoder maps a face region to a fixed-length feature vector plus a
// quality score in [0,1].
type Encoder interface {
	Encode(ctx context.Context, image []byte, bbox model.BBox) (vector []float64, quality float64, err error)
}

// IdentityRepository loads enrolled identities and their permission grants,
// used to rebuild the index and rules on startup and reload.
type IdentityRepository interface {
	ListActiveIdentities(ctx context.Context) ([]model.Identity, error)
	GetPermissions(ctx context.Context, identityID string) (map[string]model.Level, error)
}

// AuditSink records access decisions. Record is fire-and-forget and must
// not block the decision path; implementations own their buffering.
type AuditSink interface {
	Record(ctx context.Context, decision model.AccessDecision)
}

// Fingerprint derives the encoding-cache key for a face crop from the frame
// content and the region. It is a content hash, not an identity key: two
// near-identical crops of the same frame region collide on purpose.
func Fingerprint(image []byte, bbox model.BBox) string {
	h := fnv.New64a()
	h.Write(image)
	var buf [16]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(bbox.X))
	binary.LittleEndian.PutUint32(buf[4:], uint32(bbox.Y))
	binary.LittleEndian.PutUint32(buf[8:], uint32(bbox.W))
	binary.LittleEndian.PutUint32(buf[12:], uint32(bbox.H))
	h.Write(buf[:])
	return fmt.Sprintf("%016x", h.Sum64())
}
