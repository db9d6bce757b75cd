package perception_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/facegate/facegate/internal/domain/model"
	perception "github.com/facegate/facegate/internal/perception"
	. "github.com/smartystreets/goconvey/convey"
)

func fastSim(opts ...perception.SimOption) *perception.SimEngine {
	base := []perception.SimOption{
		perception.WithSimLatencyRange(time.Microsecond, 2*time.Microsecond),
	}
	return perception.NewSimEngine(append(base, opts...)...)
}

func TestSimEngine(t *testing.T) {
	ctx := context.Background()

	Convey("Given a simulated perception engine", t, func() {
		sim := fastSim()

		Convey("When detecting on the same frame twice", func() {
			first, err1 := sim.Detect(ctx, []byte("frame-a"))
			second, err2 := sim.Detect(ctx, []byte("frame-a"))

			Convey("Then the output should be deterministic", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldResemble, second)
				So(first, ShouldHaveLength, 1)
				So(first[0].Confidence, ShouldBeBetweenOrEqual, 0.5, 1)
			})
		})

		Convey("When detecting on different frames", func() {
			a, errA := sim.Detect(ctx, []byte("frame-a"))
			b, errB := sim.Detect(ctx, []byte("frame-b"))

			Convey("Then the regions should differ", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a[0].BBox, ShouldNotResemble, b[0].BBox)
			})
		})

		Convey("When detecting on an empty frame", func() {
			_, err := sim.Detect(ctx, nil)

			Convey("Then it should simulate a detector failure", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When encoding the same crop twice", func() {
			bbox := model.BBox{X: 10, Y: 20, W: 64, H: 64}
			v1, q1, err1 := sim.Encode(ctx, []byte("crop"), bbox)
			v2, q2, err2 := sim.Encode(ctx, []byte("crop"), bbox)

			Convey("Then the vector and quality should be deterministic", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(v1, ShouldResemble, v2)
				So(q1, ShouldEqual, q2)
			})

			Convey("And the vector should be unit length", func() {
				var norm float64
				for _, x := range v1 {
					norm += x * x
				}
				So(math.Sqrt(norm), ShouldAlmostEqual, 1, 1e-9)
				So(q1, ShouldBeBetweenOrEqual, 0.6, 1)
			})
		})

		Convey("When encoding different regions of the same frame", func() {
			v1, _, err1 := sim.Encode(ctx, []byte("crop"), model.BBox{X: 1, Y: 2, W: 64, H: 64})
			v2, _, err2 := sim.Encode(ctx, []byte("crop"), model.BBox{X: 3, Y: 4, W: 64, H: 64})

			Convey("Then the vectors should differ", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(v1, ShouldNotResemble, v2)
			})
		})

		Convey("When the context is already cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := sim.Detect(cancelled, []byte("frame"))

			Convey("Then the call should give up", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When a custom dimension is configured", func() {
			small := fastSim(perception.WithSimDimension(16))
			v, _, err := small.Encode(ctx, []byte("crop"), model.BBox{W: 64, H: 64})

			Convey("Then vectors should use it", func() {
				So(err, ShouldBeNil)
				So(v, ShouldHaveLength, 16)
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given the encoding cache fingerprint", t, func() {
		img := []byte("frame content")
		bbox := model.BBox{X: 1, Y: 2, W: 3, H: 4}

		Convey("When hashing the same crop twice", func() {
			Convey("Then the fingerprints should collide", func() {
				So(perception.Fingerprint(img, bbox), ShouldEqual, perception.Fingerprint(img, bbox))
			})
		})

		Convey("When the region differs", func() {
			other := model.BBox{X: 2, Y: 2, W: 3, H: 4}

			Convey("Then the fingerprints should differ", func() {
				So(perception.Fingerprint(img, bbox), ShouldNotEqual, perception.Fingerprint(img, other))
			})
		})

		Convey("When the frame content differs", func() {
			Convey("Then the fingerprints should differ", func() {
				So(perception.Fingerprint([]byte("other content"), bbox), ShouldNotEqual, perception.Fingerprint(img, bbox))
			})
		})
	})
}

func TestStaticRepository(t *testing.T) {
	ctx := context.Background()

	Convey("Given a static identity repository", t, func() {
		repo := perception.NewStaticRepository()
		repo.AddIdentity(model.Identity{
			ID:     "alice",
			Active: true,
			Encodings: []model.Encoding{
				{Vector: []float64{1, 0}, Quality: 0.9},
			},
		})
		repo.AddIdentity(model.Identity{ID: "bob", Active: false})
		repo.SetPermission("alice", "lab", model.LevelRestricted)

		Convey("When listing active identities", func() {
			ids, err := repo.ListActiveIdentities(ctx)

			Convey("Then inactive identities should be excluded", func() {
				So(err, ShouldBeNil)
				So(ids, ShouldHaveLength, 1)
				So(ids[0].ID, ShouldEqual, "alice")
			})
		})

		Convey("When reading permissions", func() {
			perms, err := repo.GetPermissions(ctx, "alice")

			Convey("Then the stored grants should return", func() {
				So(err, ShouldBeNil)
				So(perms["lab"], ShouldEqual, model.LevelRestricted)
			})
		})

		Convey("When reading permissions for an unknown identity", func() {
			perms, err := repo.GetPermissions(ctx, "nobody")

			Convey("Then the result should be empty, not an error", func() {
				So(err, ShouldBeNil)
				So(perms, ShouldBeEmpty)
			})
		})
	})
}
