package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	model "github.com/okian/gradebook/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseValue(t *testing.T) {
	convey.Convey("Given raw score input", t, func() {
		convey.Convey("When the value is a plain integer", func() {
			v, err := model.ParseValue("85")

			convey.Convey("Then it should be fixed to two places", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(model.FormatValue(v), convey.ShouldEqual, "85.00")
			})
		})

		convey.Convey("When the value has surrounding whitespace", func() {
			v, err := model.ParseValue("  72.5 ")

			convey.Convey("Then it should be accepted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(model.FormatValue(v), convey.ShouldEqual, "72.50")
			})
		})

		convey.Convey("When the value has more than two places", func() {
			v, err := model.ParseValue("85.555")

			convey.Convey("Then it should be rounded half away from zero", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(model.FormatValue(v), convey.ShouldEqual, "85.56")
			})
		})

		convey.Convey("When the value sits on the bounds", func() {
			low, errLow := model.ParseValue("0")
			high, errHigh := model.ParseValue("100")

			convey.Convey("Then both bounds should be inclusive", func() {
				convey.So(errLow, convey.ShouldBeNil)
				convey.So(errHigh, convey.ShouldBeNil)
				convey.So(low.Equal(decimal.Zero), convey.ShouldBeTrue)
				convey.So(high.Equal(decimal.NewFromInt(100)), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the value is not a number", func() {
			for _, raw := range []string{"abc", "", "  ", "NaN", "12,5"} {
				_, err := model.ParseValue(raw)
				convey.So(errors.Is(err, model.ErrInvalidNumber), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the value is outside [0, 100]", func() {
			for _, raw := range []string{"150", "-5", "100.01", "-0.01", "100.005", "1e3", "-1e3"} {
				_, err := model.ParseValue(raw)
				convey.So(errors.Is(err, model.ErrOutOfRange), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When the exponent is huge", func() {
			start := time.Now()
			_, errBig := model.ParseValue("1e20000000")
			tiny, errTiny := model.ParseValue("1e-20000000")
			zero, errZero := model.ParseValue("0e20000000")

			convey.Convey("Then it should be settled without expanding the value", func() {
				convey.So(time.Since(start), convey.ShouldBeLessThan, time.Second)
				convey.So(errors.Is(errBig, model.ErrOutOfRange), convey.ShouldBeTrue)
				convey.So(errBig.Error(), convey.ShouldEqual, `out of range: "1e20000000"`)
				convey.So(errTiny, convey.ShouldBeNil)
				convey.So(tiny.IsZero(), convey.ShouldBeTrue)
				convey.So(errZero, convey.ShouldBeNil)
				convey.So(zero.IsZero(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the value sits just inside the rounding edge", func() {
			v, err := model.ParseValue("100.004")
			small, errSmall := model.ParseValue("0.0049")

			convey.Convey("Then it should round into range", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(model.FormatValue(v), convey.ShouldEqual, "100.00")
				convey.So(errSmall, convey.ShouldBeNil)
				convey.So(model.FormatValue(small), convey.ShouldEqual, "0.00")
			})
		})

		convey.Convey("When the input is very long", func() {
			raw := strings.Repeat("9", 10_000)
			_, err := model.ParseValue(raw)

			convey.Convey("Then the message should quote only an excerpt", func() {
				convey.So(errors.Is(err, model.ErrInvalidNumber), convey.ShouldBeTrue)
				convey.So(len(err.Error()), convey.ShouldBeLessThan, 100)
			})
		})
	})
}

func TestNewScore(t *testing.T) {
	convey.Convey("Given a subject and value", t, func() {
		convey.Convey("When the subject has mixed case", func() {
			sc, err := model.NewScore("  MaTh ", "90")

			convey.Convey("Then it should be lower-cased and trimmed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sc.Subject, convey.ShouldEqual, "math")
				convey.So(model.FormatValue(sc.Value), convey.ShouldEqual, "90.00")
			})
		})

		convey.Convey("When the subject is blank", func() {
			_, err := model.NewScore("   ", "90")

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, model.ErrEmptySubject), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the subject is not valid UTF-8", func() {
			_, err := model.NewScore("hist\xffory", "90")

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, model.ErrInvalidText), convey.ShouldBeTrue)
			})
		})
	})
}

func TestExcerpt(t *testing.T) {
	convey.Convey("Given text for an error message", t, func() {
		convey.So(model.Excerpt("abc"), convey.ShouldEqual, `"abc"`)
		long := model.Excerpt(strings.Repeat("x", 1000))
		convey.So(long, convey.ShouldEqual, `"`+strings.Repeat("x", 32)+`"...`)
	})
}

func TestStudent(t *testing.T) {
	convey.Convey("Given a student with mixed subjects", t, func() {
		s := model.NewStudent("Alice")
		for _, in := range []struct{ subject, value string }{
			{"math", "85"}, {"science", "70"}, {"math", "95"},
		} {
			sc, err := model.NewScore(in.subject, in.value)
			convey.So(err, convey.ShouldBeNil)
			s.Scores = append(s.Scores, sc)
		}

		convey.Convey("When filtering values by subject case-insensitively", func() {
			values := s.Values("MATH")

			convey.Convey("Then only matching scores should be returned", func() {
				convey.So(len(values), convey.ShouldEqual, 2)
				convey.So(model.FormatValue(values[0]), convey.ShouldEqual, "85.00")
				convey.So(model.FormatValue(values[1]), convey.ShouldEqual, "95.00")
			})
		})

		convey.Convey("When no subject is given", func() {
			convey.So(len(s.Values("")), convey.ShouldEqual, 3)
		})

		convey.Convey("When cloning", func() {
			c := s.Clone()
			c.Scores[0] = model.Score{Subject: "art", Value: decimal.Zero}

			convey.Convey("Then the original should be untouched", func() {
				convey.So(s.Scores[0].Subject, convey.ShouldEqual, "math")
			})
		})
	})
}

func TestHasScorePrecision(t *testing.T) {
	convey.Convey("Given decimals of varying precision", t, func() {
		convey.So(model.HasScorePrecision(decimal.RequireFromString("85.25")), convey.ShouldBeTrue)
		convey.So(model.HasScorePrecision(decimal.RequireFromString("85")), convey.ShouldBeTrue)
		convey.So(model.HasScorePrecision(decimal.RequireFromString("85.255")), convey.ShouldBeFalse)
	})
}
