package stats_test

import (
	"testing"

	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func decimals(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func fixed(d decimal.Decimal) string { return d.StringFixed(stats.Places) }

func TestSummarize(t *testing.T) {
	Convey("Given no observations", t, func() {
		s := stats.Summarize(nil)

		Convey("Then every field should be zero", func() {
			So(s.Count, ShouldEqual, 0)
			So(s.Mean.IsZero(), ShouldBeTrue)
			So(s.Median.IsZero(), ShouldBeTrue)
			So(s.Mode.IsZero(), ShouldBeTrue)
			So(s.StdDev.IsZero(), ShouldBeTrue)
			So(s.Min.IsZero(), ShouldBeTrue)
			So(s.Max.IsZero(), ShouldBeTrue)
		})
	})

	Convey("Given a single observation", t, func() {
		s := stats.Summarize(decimals("42.50"))

		Convey("Then the standard deviation should be zero", func() {
			So(s.Count, ShouldEqual, 1)
			So(fixed(s.Mean), ShouldEqual, "42.50")
			So(fixed(s.Median), ShouldEqual, "42.50")
			So(fixed(s.Mode), ShouldEqual, "42.50")
			So(s.StdDev.IsZero(), ShouldBeTrue)
			So(fixed(s.Min), ShouldEqual, "42.50")
			So(fixed(s.Max), ShouldEqual, "42.50")
		})
	})

	Convey("Given two observations", t, func() {
		s := stats.Summarize(decimals("95", "85"))

		Convey("Then the summary should match hand computation", func() {
			So(s.Count, ShouldEqual, 2)
			So(fixed(s.Mean), ShouldEqual, "90.00")
			So(fixed(s.Median), ShouldEqual, "90.00")
			So(fixed(s.Mode), ShouldEqual, "85.00")
			So(fixed(s.StdDev), ShouldEqual, "7.07")
			So(fixed(s.Min), ShouldEqual, "85.00")
			So(fixed(s.Max), ShouldEqual, "95.00")
		})
	})

	Convey("Given an even set with two modes", t, func() {
		s := stats.Summarize(decimals("90", "100", "80", "70", "90", "80"))

		Convey("Then the smallest tied value should be the mode", func() {
			So(fixed(s.Mode), ShouldEqual, "80.00")
			So(fixed(s.Median), ShouldEqual, "85.00")
			So(fixed(s.Mean), ShouldEqual, "85.00")
			So(fixed(s.StdDev), ShouldEqual, "10.49")
		})
	})
}

func TestMean(t *testing.T) {
	Convey("Given values whose mean repeats", t, func() {
		Convey("Then the mean should be rounded to two places", func() {
			So(fixed(stats.Mean(decimals("1", "1", "2"))), ShouldEqual, "1.33")
			So(fixed(stats.Mean(decimals("0.01", "0.02"))), ShouldEqual, "0.02")
		})
	})

	Convey("Given values that binary floats cannot represent", t, func() {
		Convey("Then the sum should stay exact", func() {
			So(fixed(stats.Mean(decimals("0.10", "0.20", "0.30"))), ShouldEqual, "0.20")
		})
	})
}

func TestMode(t *testing.T) {
	Convey("Given a clear most frequent value", t, func() {
		So(fixed(stats.Mode(decimals("60", "75", "75", "90"))), ShouldEqual, "75.00")
	})

	Convey("Given values equal after normalisation", t, func() {
		So(fixed(stats.Mode(decimals("75.0", "75.00", "60"))), ShouldEqual, "75.00")
	})
}

func TestStdDev(t *testing.T) {
	Convey("Given identical values", t, func() {
		So(stats.StdDev(decimals("50", "50", "50")).IsZero(), ShouldBeTrue)
	})

	Convey("Given a small spread", t, func() {
		So(fixed(stats.StdDev(decimals("0.10", "0.20"))), ShouldEqual, "0.07")
	})
}
