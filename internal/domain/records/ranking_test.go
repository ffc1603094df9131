package records_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
	. "github.com/smartystreets/goconvey/convey"
)

func rankedNames(entries []records.RankEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestStore_Ranking(t *testing.T) {
	Convey("Given a class with mixed results", t, func() {
		ctx := context.Background()
		store := records.New()
		for _, name := range []string{"Dan", "Carol", "Bob", "Alice"} {
			So(store.AddStudent(ctx, name), ShouldBeNil)
		}
		for _, in := range [][3]string{
			{"Alice", "math", "90"}, {"Alice", "art", "70"},
			{"Bob", "math", "80"},
			{"Carol", "math", "80"}, {"Carol", "art", "100"},
		} {
			_, err := store.RecordScore(ctx, in[0], in[1], in[2])
			So(err, ShouldBeNil)
		}

		Convey("When ranking across all subjects", func() {
			entries, err := store.Ranking(ctx, records.RankQuery{})

			Convey("Then averages should order descending with names breaking ties", func() {
				So(err, ShouldBeNil)
				So(rankedNames(entries), ShouldResemble, []string{"Carol", "Alice", "Bob", "Dan"})
				So(entries[0].Rank, ShouldEqual, 1)
				So(model.FormatValue(entries[0].Average), ShouldEqual, "90.00")
				So(entries[0].Count, ShouldEqual, 2)
				So(entries[3].Count, ShouldEqual, 0)
			})
		})

		Convey("When ranking one subject", func() {
			entries, err := store.Ranking(ctx, records.RankQuery{Subject: "Math"})

			Convey("Then only that subject should count", func() {
				So(err, ShouldBeNil)
				So(rankedNames(entries), ShouldResemble, []string{"Alice", "Bob", "Carol", "Dan"})
				So(model.FormatValue(entries[1].Average), ShouldEqual, "80.00")
			})
		})

		Convey("When filtering with an expression", func() {
			entries, err := store.Ranking(ctx, records.RankQuery{Where: `average >= 80 && count > 0`})

			Convey("Then filtered entries should keep their overall rank", func() {
				So(err, ShouldBeNil)
				So(rankedNames(entries), ShouldResemble, []string{"Carol", "Alice", "Bob"})
				So(entries[2].Rank, ShouldEqual, 3)
			})
		})

		Convey("When filtering by name and subject", func() {
			entries, err := store.Ranking(ctx, records.RankQuery{Subject: "art", Where: `subject == "art" && name startsWith "C"`})
			So(err, ShouldBeNil)
			So(rankedNames(entries), ShouldResemble, []string{"Carol"})
		})

		Convey("When limiting the result", func() {
			entries, err := store.Ranking(ctx, records.RankQuery{Limit: 2})
			So(err, ShouldBeNil)
			So(rankedNames(entries), ShouldResemble, []string{"Carol", "Alice"})
		})

		Convey("When the expression does not compile", func() {
			_, err := store.Ranking(ctx, records.RankQuery{Where: `average >=`})
			So(errors.Is(err, records.ErrInvalidQuery), ShouldBeTrue)
			So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
		})

		Convey("When the expression is not boolean", func() {
			_, err := store.Ranking(ctx, records.RankQuery{Where: `average + 1`})
			So(errors.Is(err, records.ErrInvalidQuery), ShouldBeTrue)
		})

		Convey("When the expression names an unknown variable", func() {
			_, err := store.Ranking(ctx, records.RankQuery{Where: `grade > 1`})
			So(errors.Is(err, records.ErrInvalidQuery), ShouldBeTrue)
		})

		Convey("When the limit is negative", func() {
			_, err := store.Ranking(ctx, records.RankQuery{Limit: -1})
			So(errors.Is(err, records.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}
