package model_test

import (
	"testing"

	"github.com/facegate/facegate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLevel(t *testing.T) {
	Convey("Given the permission level ordering", t, func() {
		Convey("Then levels should escalate from none to admin", func() {
			So(model.LevelNone, ShouldBeLessThan, model.LevelBasic)
			So(model.LevelBasic, ShouldBeLessThan, model.LevelRestricted)
			So(model.LevelRestricted, ShouldBeLessThan, model.LevelHighSecurity)
			So(model.LevelHighSecurity, ShouldBeLessThan, model.LevelAdmin)
		})

		Convey("When parsing canonical names", func() {
			for _, l := range []model.Level{
				model.LevelNone,
				model.LevelBasic,
				model.LevelRestricted,
				model.LevelHighSecurity,
				model.LevelAdmin,
			} {
				So(model.ParseLevel(l.String()), ShouldEqual, l)
			}
		})

		Convey("When parsing an unknown name", func() {
			Convey("Then it should fall to the weakest level", func() {
				So(model.ParseLevel("superuser"), ShouldEqual, model.LevelNone)
				So(model.ParseLevel(""), ShouldEqual, model.LevelNone)
			})
		})
	})
}

func TestIdentity(t *testing.T) {
	Convey("Given identity matchability", t, func() {
		enc := model.Encoding{Vector: []float64{1, 0}, Quality: 0.9}

		Convey("Then only active identities with encodings should match", func() {
			So(model.Identity{ID: "a", Active: true, Encodings: []model.Encoding{enc}}.Matchable(), ShouldBeTrue)
			So(model.Identity{ID: "b", Active: false, Encodings: []model.Encoding{enc}}.Matchable(), ShouldBeFalse)
			So(model.Identity{ID: "c", Active: true}.Matchable(), ShouldBeFalse)
		})
	})
}

func TestMatchResult(t *testing.T) {
	Convey("Given a match result", t, func() {
		Convey("Then an empty identity should mean unidentified", func() {
			So(model.MatchResult{IdentityID: "alice"}.Identified(), ShouldBeTrue)
			So(model.MatchResult{}.Identified(), ShouldBeFalse)
		})
	})
}

func TestEvents(t *testing.T) {
	Convey("Given the pipeline event kinds", t, func() {
		Convey("Then each event should carry its kind and ID", func() {
			me := model.MatchEvent{ID: "m-1"}
			So(me.Kind(), ShouldEqual, model.KindMatch)
			So(me.EventID(), ShouldEqual, "m-1")

			de := model.DecisionEvent{ID: "d-1"}
			So(de.Kind(), ShouldEqual, model.KindDecision)
			So(de.EventID(), ShouldEqual, "d-1")

			fe := model.FrameDropEvent{ID: "f-1"}
			So(fe.Kind(), ShouldEqual, model.KindFrameDrop)
			So(fe.EventID(), ShouldEqual, "f-1")
		})

		Convey("When a decision event carries a denial", func() {
			denied := model.DecisionEvent{Decision: model.AccessDecision{Granted: false}}
			granted := model.DecisionEvent{Decision: model.AccessDecision{Granted: true}}

			Convey("Then Denied should reflect the decision", func() {
				So(denied.Denied(), ShouldBeTrue)
				So(granted.Denied(), ShouldBeFalse)
			})
		})
	})
}
