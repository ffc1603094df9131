package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/gradebook/internal/adapters/repository"
	service "github.com/okian/gradebook/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by a JSON file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "scores.json")

		svc := service.New(service.WithRepository(repository.NewJSONFileRepository(path)))
		So(svc.Open(ctx), ShouldBeNil)

		Convey("When students and scores are recorded", func() {
			So(svc.AddStudent(ctx, "Alice"), ShouldBeNil)
			_, err := svc.RecordScore(ctx, "Alice", "math", "91.5")
			So(err, ShouldBeNil)
			So(svc.Close(), ShouldBeNil)

			Convey("Then a fresh service should load them back", func() {
				reopened := service.New(service.WithRepository(repository.NewJSONFileRepository(path)))
				So(reopened.Open(ctx), ShouldBeNil)
				defer func() { _ = reopened.Close() }()

				avg, err := reopened.Average(ctx, "Alice", "math")
				So(err, ShouldBeNil)
				So(avg.StringFixed(2), ShouldEqual, "91.50")
			})
		})

		Convey("When many callers record concurrently", func() {
			So(svc.AddStudent(ctx, "Bob"), ShouldBeNil)

			const writers = 8
			const perWriter = 10
			var wg sync.WaitGroup
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						_, _ = svc.RecordScore(ctx, "Bob", fmt.Sprintf("subject-%d", w), "50")
					}
				}(w)
			}
			wg.Wait()

			Convey("Then every score should be kept and persisted", func() {
				st, err := svc.Student(ctx, "Bob")
				So(err, ShouldBeNil)
				So(len(st.Scores), ShouldEqual, writers*perWriter)

				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				doc, err := repository.Decode(data)
				So(err, ShouldBeNil)
				So(len(doc.Students[0].Scores), ShouldEqual, writers*perWriter)
				So(len(doc.Subjects), ShouldEqual, writers)
			})
		})
	})
}
