package export_test

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/okian/gradebook/internal/adapters/export"
	"github.com/okian/gradebook/internal/domain/records"
	"github.com/smartystreets/goconvey/convey"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestWriteCSV(t *testing.T) {
	convey.Convey("Given a store with scores", t, func() {
		ctx := context.Background()
		store := records.New()
		convey.So(store.AddStudent(ctx, "Alice"), convey.ShouldBeNil)
		convey.So(store.AddStudent(ctx, "Smith, Bob"), convey.ShouldBeNil)
		_, _ = store.RecordScore(ctx, "Alice", "Math", "85")
		_, _ = store.RecordScore(ctx, "Smith, Bob", "science", "72.5")

		convey.Convey("When exporting", func() {
			var buf bytes.Buffer
			err := export.WriteCSV(&buf, store.ExportRows(ctx))

			convey.Convey("Then the header and rows should be written in order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(buf.String(), convey.ShouldEqual,
					"Student,Subject,Score\n"+
						"Alice,math,85.00\n"+
						"\"Smith, Bob\",science,72.50\n")
			})
		})

		convey.Convey("When the writer fails", func() {
			err := export.WriteCSV(failingWriter{}, store.ExportRows(ctx))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given an empty store", t, func() {
		var buf bytes.Buffer
		err := export.WriteCSV(&buf, slices.Values([]records.Row(nil)))

		convey.Convey("Then only the header should be written", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(buf.String(), convey.ShouldEqual, "Student,Subject,Score\n")
		})
	})
}
