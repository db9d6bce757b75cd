package cache_test

import (
	"fmt"
	"testing"
	"time"

	cache "github.com/facegate/facegate/internal/domain/cache"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEncodingCache(t *testing.T) {
	Convey("Given a new EncodingCache", t, func() {
		Convey("When creating a cache with default options", func() {
			c := cache.New()

			Convey("Then it should be empty", func() {
				So(c, ShouldNotBeNil)
				So(c.Len(), ShouldEqual, 0)
			})
		})

		Convey("When storing and retrieving encodings", func() {
			c := cache.New()
			c.Put("fp-1", []float64{0.1, 0.2, 0.3}, 0.9)

			Convey("Then a present fingerprint should hit", func() {
				vec, quality, ok := c.Get("fp-1")
				So(ok, ShouldBeTrue)
				So(vec, ShouldResemble, []float64{0.1, 0.2, 0.3})
				So(quality, ShouldEqual, 0.9)
			})

			Convey("Then an absent fingerprint should miss", func() {
				_, _, ok := c.Get("fp-2")
				So(ok, ShouldBeFalse)
			})

			Convey("And the same fingerprint is stored again", func() {
				c.Put("fp-1", []float64{0.4, 0.5, 0.6}, 0.7)

				Convey("Then the slot should be refreshed in place", func() {
					So(c.Len(), ShouldEqual, 1)
					vec, quality, ok := c.Get("fp-1")
					So(ok, ShouldBeTrue)
					So(vec, ShouldResemble, []float64{0.4, 0.5, 0.6})
					So(quality, ShouldEqual, 0.7)
				})
			})
		})

		Convey("When the cache is at capacity", func() {
			c := cache.New(cache.WithCapacity(3))
			c.Put("fp-1", []float64{1}, 0.9)
			c.Put("fp-2", []float64{2}, 0.9)
			c.Put("fp-3", []float64{3}, 0.9)

			Convey("And one more encoding is stored", func() {
				c.Put("fp-4", []float64{4}, 0.9)

				Convey("Then the oldest insertion should be evicted", func() {
					So(c.Len(), ShouldEqual, 3)
					_, _, ok := c.Get("fp-1")
					So(ok, ShouldBeFalse)

					for _, fp := range []string{"fp-2", "fp-3", "fp-4"} {
						_, _, ok := c.Get(fp)
						So(ok, ShouldBeTrue)
					}
				})
			})

			Convey("And many more encodings are stored", func() {
				for i := 0; i < 10; i++ {
					c.Put(fmt.Sprintf("extra-%d", i), []float64{float64(i)}, 0.9)
				}

				Convey("Then the size should stay bounded", func() {
					So(c.Len(), ShouldEqual, 3)
				})
			})

			Convey("And the capacity is lowered at runtime", func() {
				c.SetCapacity(2)

				Convey("Then the oldest insertions should be evicted immediately", func() {
					So(c.Len(), ShouldEqual, 2)
					_, _, ok := c.Get("fp-1")
					So(ok, ShouldBeFalse)

					for _, fp := range []string{"fp-2", "fp-3"} {
						_, _, ok := c.Get(fp)
						So(ok, ShouldBeTrue)
					}
				})

				Convey("And the new bound should hold for later insertions", func() {
					c.Put("fp-4", []float64{4}, 0.9)

					So(c.Len(), ShouldEqual, 2)
					_, _, ok := c.Get("fp-4")
					So(ok, ShouldBeTrue)
					_, _, ok = c.Get("fp-2")
					So(ok, ShouldBeFalse)
				})
			})
		})

		Convey("When entries expire", func() {
			current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			c := cache.New(
				cache.WithTTL(time.Minute),
				cache.WithClock(func() time.Time { return current }),
			)
			c.Put("fp-1", []float64{1}, 0.9)

			Convey("And the TTL has not elapsed", func() {
				current = current.Add(59 * time.Second)

				Convey("Then the entry should still hit", func() {
					_, _, ok := c.Get("fp-1")
					So(ok, ShouldBeTrue)
				})
			})

			Convey("And the TTL has elapsed", func() {
				current = current.Add(time.Minute)

				Convey("Then the entry should miss and be removed", func() {
					_, _, ok := c.Get("fp-1")
					So(ok, ShouldBeFalse)
					So(c.Len(), ShouldEqual, 0)
				})
			})

			Convey("And the TTL is lowered for new insertions", func() {
				c.SetTTL(time.Second)
				c.Put("fp-2", []float64{2}, 0.9)
				current = current.Add(2 * time.Second)

				Convey("Then the old entry should outlive the new one", func() {
					_, _, ok := c.Get("fp-2")
					So(ok, ShouldBeFalse)
					_, _, ok = c.Get("fp-1")
					So(ok, ShouldBeTrue)
				})
			})
		})

		Convey("When clearing the cache", func() {
			c := cache.New()
			c.Put("fp-1", []float64{1}, 0.9)
			c.Put("fp-2", []float64{2}, 0.9)
			c.Clear()

			Convey("Then it should be empty", func() {
				So(c.Len(), ShouldEqual, 0)
				_, _, ok := c.Get("fp-1")
				So(ok, ShouldBeFalse)
			})

			Convey("And it should accept new entries afterwards", func() {
				c.Put("fp-3", []float64{3}, 0.9)
				_, _, ok := c.Get("fp-3")
				So(ok, ShouldBeTrue)
			})
		})
	})
}
