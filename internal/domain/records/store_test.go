package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/records"
	. "github.com/smartystreets/goconvey/convey"
)

// failingRepository fails every Save once armed.
type failingRepository struct {
	repository.MemoryRepository
	fail  bool
	saves int
}

func (r *failingRepository) Save(ctx context.Context, doc repository.Document) error {
	r.saves++
	if r.fail {
		return errors.Join(repository.ErrIO, errors.New("disk full"))
	}
	return r.MemoryRepository.Save(ctx, doc)
}

func fixed(store *records.Store, name, subject string) string {
	avg, err := store.Average(context.Background(), name, subject)
	So(err, ShouldBeNil)
	return model.FormatValue(avg)
}

func TestStore_AddStudent(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := records.New()

		Convey("When adding a student", func() {
			err := store.AddStudent(ctx, "  Alice ")

			Convey("Then the trimmed name should map to average 0", func() {
				So(err, ShouldBeNil)
				averages := store.AllAverages(ctx, "")
				avg, ok := averages["Alice"]
				So(ok, ShouldBeTrue)
				So(avg.IsZero(), ShouldBeTrue)
				So(store.Students(ctx), ShouldResemble, []string{"Alice"})
			})

			Convey("And adding the same name again should fail as a duplicate", func() {
				err := store.AddStudent(ctx, "Alice  ")
				So(errors.Is(err, records.ErrDuplicate), ShouldBeTrue)
				So(store.Students(ctx), ShouldResemble, []string{"Alice"})
			})
		})

		Convey("When adding names that are not valid UTF-8", func() {
			errA := store.AddStudent(ctx, "A\xff")
			errB := store.AddStudent(ctx, "A\xfe")

			Convey("Then both should fail validation without change", func() {
				So(errors.Is(errA, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(errA, records.ErrInvalidText), ShouldBeTrue)
				So(errors.Is(errB, records.ErrInvalidText), ShouldBeTrue)
				So(store.Students(ctx), ShouldBeEmpty)
			})
		})

		Convey("When adding a blank name", func() {
			err := store.AddStudent(ctx, "   ")

			Convey("Then it should fail validation without change", func() {
				So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, records.ErrEmptyName), ShouldBeTrue)
				So(store.Students(ctx), ShouldBeEmpty)
			})
		})
	})
}

func TestStore_RecordScore(t *testing.T) {
	Convey("Given a store with Alice", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)

		Convey("When recording two math scores", func() {
			_, err1 := store.RecordScore(ctx, "Alice", "math", "85")
			_, err2 := store.RecordScore(ctx, "Alice", "MATH", "95")

			Convey("Then averages should match the worked example", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(fixed(store, "Alice", ""), ShouldEqual, "90.00")
				So(fixed(store, "Alice", "math"), ShouldEqual, "90.00")
				So(fixed(store, "Alice", "Math"), ShouldEqual, "90.00")
				So(fixed(store, "Alice", "science"), ShouldEqual, "0.00")
				So(store.Subjects(ctx), ShouldResemble, []string{"math"})
			})
		})

		Convey("When recording a value outside [0, 100]", func() {
			for _, raw := range []string{"150", "-5"} {
				_, err := store.RecordScore(ctx, "Alice", "math", raw)
				So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, records.ErrOutOfRange), ShouldBeTrue)
			}

			Convey("Then no score should be added", func() {
				st, err := store.Student(ctx, "Alice")
				So(err, ShouldBeNil)
				So(st.Scores, ShouldBeEmpty)
				So(store.Subjects(ctx), ShouldBeEmpty)
			})
		})

		Convey("When recording a non-numeric value", func() {
			_, err := store.RecordScore(ctx, "Alice", "math", "abc")

			Convey("Then it should fail validation without change", func() {
				So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, records.ErrInvalidNumber), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "invalid number")
				st, _ := store.Student(ctx, "Alice")
				So(st.Scores, ShouldBeEmpty)
			})
		})

		Convey("When recording a value with a huge exponent", func() {
			start := time.Now()
			_, err := store.RecordScore(ctx, "Alice", "math", "1e20000000")

			Convey("Then it should fail fast with a short message", func() {
				So(time.Since(start), ShouldBeLessThan, time.Second)
				So(errors.Is(err, records.ErrOutOfRange), ShouldBeTrue)
				So(len(err.Error()), ShouldBeLessThan, 200)
				st, _ := store.Student(ctx, "Alice")
				So(st.Scores, ShouldBeEmpty)
			})
		})

		Convey("When recording a subject that is not valid UTF-8", func() {
			_, err := store.RecordScore(ctx, "Alice", "m\xffth", "50")

			Convey("Then it should fail validation", func() {
				So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, records.ErrInvalidText), ShouldBeTrue)
				So(store.Subjects(ctx), ShouldBeEmpty)
			})
		})

		Convey("When recording with a blank subject", func() {
			_, err := store.RecordScore(ctx, "Alice", "  ", "50")
			So(errors.Is(err, records.ErrEmptySubject), ShouldBeTrue)
		})

		Convey("When recording for an unknown student", func() {
			_, err := store.RecordScore(ctx, "Bob", "math", "abc")

			Convey("Then not found should win over bad input", func() {
				So(errors.Is(err, records.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When recording a value with extra precision", func() {
			sc, err := store.RecordScore(ctx, "Alice", "Art", "77.125")

			Convey("Then it should be fixed to two places", func() {
				So(err, ShouldBeNil)
				So(sc.Subject, ShouldEqual, "art")
				So(model.FormatValue(sc.Value), ShouldEqual, "77.13")
			})
		})
	})
}

func TestStore_Averages(t *testing.T) {
	Convey("Given arbitrary scores", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		So(store.AddStudent(ctx, "Bob"), ShouldBeNil)
		for _, raw := range []string{"0", "100", "33.33", "66.67", "50"} {
			_, err := store.RecordScore(ctx, "Alice", "math", raw)
			So(err, ShouldBeNil)
		}

		Convey("Then the average should be the arithmetic mean", func() {
			So(fixed(store, "Alice", ""), ShouldEqual, "50.00")
		})

		Convey("Then a student with no scores should average 0", func() {
			So(fixed(store, "Bob", ""), ShouldEqual, "0.00")
			So(fixed(store, "Bob", "math"), ShouldEqual, "0.00")
		})

		Convey("Then all averages should include every student", func() {
			averages := store.AllAverages(ctx, "math")
			So(len(averages), ShouldEqual, 2)
			So(model.FormatValue(averages["Alice"]), ShouldEqual, "50.00")
			So(averages["Bob"].IsZero(), ShouldBeTrue)
		})

		Convey("Then averaging an unknown student should fail", func() {
			_, err := store.Average(ctx, "Carol", "")
			So(errors.Is(err, records.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestStore_RemoveScore(t *testing.T) {
	Convey("Given Alice with three scores", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		for _, in := range [][2]string{{"math", "85"}, {"science", "70"}, {"math", "95"}} {
			_, err := store.RecordScore(ctx, "Alice", in[0], in[1])
			So(err, ShouldBeNil)
		}

		Convey("When removing the middle score", func() {
			So(store.RemoveScore(ctx, "Alice", 1), ShouldBeNil)

			Convey("Then later scores should shift down", func() {
				st, _ := store.Student(ctx, "Alice")
				So(len(st.Scores), ShouldEqual, 2)
				So(st.Scores[1].Subject, ShouldEqual, "math")
				So(model.FormatValue(st.Scores[1].Value), ShouldEqual, "95.00")
			})

			Convey("And the subject should remain known", func() {
				So(store.Subjects(ctx), ShouldResemble, []string{"math", "science"})
			})
		})

		Convey("When removing an index past the end", func() {
			err := store.RemoveScore(ctx, "Alice", 5)

			Convey("Then it should fail as an invalid index without change", func() {
				So(errors.Is(err, records.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, records.ErrInvalidIndex), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "invalid index")
				st, _ := store.Student(ctx, "Alice")
				So(len(st.Scores), ShouldEqual, 3)
			})
		})

		Convey("When removing a negative index", func() {
			So(errors.Is(store.RemoveScore(ctx, "Alice", -1), records.ErrInvalidIndex), ShouldBeTrue)
		})

		Convey("When removing from an unknown student", func() {
			So(errors.Is(store.RemoveScore(ctx, "Bob", 0), records.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestStore_RemoveStudent(t *testing.T) {
	Convey("Given two students with scores", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		So(store.AddStudent(ctx, "Bob"), ShouldBeNil)
		_, err := store.RecordScore(ctx, "Alice", "math", "80")
		So(err, ShouldBeNil)

		Convey("When removing Alice", func() {
			So(store.RemoveStudent(ctx, "Alice"), ShouldBeNil)

			Convey("Then her scores should go with her", func() {
				So(store.Students(ctx), ShouldResemble, []string{"Bob"})
				So(store.Statistics(ctx, "").Count, ShouldEqual, 0)
				So(store.Subjects(ctx), ShouldResemble, []string{"math"})
			})

			Convey("And her name should be free again", func() {
				So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
				So(store.Students(ctx), ShouldResemble, []string{"Bob", "Alice"})
			})
		})

		Convey("When removing an unknown student", func() {
			So(errors.Is(store.RemoveStudent(ctx, "Carol"), records.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestStore_Statistics(t *testing.T) {
	Convey("Given an empty store", t, func() {
		s := records.New().Statistics(context.Background(), "")

		Convey("Then count and every numeric field should be zero", func() {
			So(s.Count, ShouldEqual, 0)
			So(s.Mean.IsZero(), ShouldBeTrue)
			So(s.Median.IsZero(), ShouldBeTrue)
			So(s.Mode.IsZero(), ShouldBeTrue)
			So(s.StdDev.IsZero(), ShouldBeTrue)
			So(s.Min.IsZero(), ShouldBeTrue)
			So(s.Max.IsZero(), ShouldBeTrue)
		})
	})

	Convey("Given scores across students", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		So(store.AddStudent(ctx, "Bob"), ShouldBeNil)
		for _, in := range [][3]string{
			{"Alice", "math", "80"}, {"Alice", "science", "60"},
			{"Bob", "math", "90"}, {"Bob", "Math", "80"},
		} {
			_, err := store.RecordScore(ctx, in[0], in[1], in[2])
			So(err, ShouldBeNil)
		}

		Convey("Then the store-wide summary should cover every score", func() {
			s := store.Statistics(ctx, "")
			So(s.Count, ShouldEqual, 4)
			So(model.FormatValue(s.Mean), ShouldEqual, "77.50")
			So(model.FormatValue(s.Median), ShouldEqual, "80.00")
			So(model.FormatValue(s.Mode), ShouldEqual, "80.00")
			So(model.FormatValue(s.Min), ShouldEqual, "60.00")
			So(model.FormatValue(s.Max), ShouldEqual, "90.00")
		})

		Convey("Then a subject filter should apply case-insensitively", func() {
			s := store.Statistics(ctx, "MATH")
			So(s.Count, ShouldEqual, 3)
			So(model.FormatValue(s.Mean), ShouldEqual, "83.33")
		})
	})
}

func TestStore_ExportRows(t *testing.T) {
	Convey("Given students recorded out of alphabetical order", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Zed"), ShouldBeNil)
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		_, _ = store.RecordScore(ctx, "Alice", "math", "90")
		_, _ = store.RecordScore(ctx, "Zed", "art", "70")
		_, _ = store.RecordScore(ctx, "Zed", "math", "60")

		Convey("Then rows should follow student then score insertion order", func() {
			var got []string
			for row := range store.ExportRows(ctx) {
				got = append(got, row.Student+"/"+row.Subject+"/"+model.FormatValue(row.Score))
			}
			So(got, ShouldResemble, []string{"Zed/art/70.00", "Zed/math/60.00", "Alice/math/90.00"})
		})

		Convey("Then the sequence should be restartable and see new state", func() {
			seq := store.ExportRows(ctx)
			So(len(slices.Collect(seq)), ShouldEqual, 3)
			_, _ = store.RecordScore(ctx, "Alice", "math", "10")
			So(len(slices.Collect(seq)), ShouldEqual, 4)
		})

		Convey("Then stopping early should be allowed", func() {
			n := 0
			for range store.ExportRows(ctx) {
				n++
				break
			}
			So(n, ShouldEqual, 1)
		})
	})
}

func TestStore_PersistFailure(t *testing.T) {
	Convey("Given a store whose repository starts failing", t, func() {
		ctx := context.Background()
		repo := &failingRepository{}
		var observed []error
		store := records.New(
			records.WithRepository(repo),
			records.WithPersistObserver(func(_ time.Duration, err error) { observed = append(observed, err) }),
		)
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		_, err := store.RecordScore(ctx, "Alice", "math", "80")
		So(err, ShouldBeNil)
		repo.fail = true

		Convey("Then every mutation should report the I/O error and roll back", func() {
			err := store.AddStudent(ctx, "Bob")
			So(errors.Is(err, repository.ErrIO), ShouldBeTrue)
			So(store.Students(ctx), ShouldResemble, []string{"Alice"})

			_, err = store.RecordScore(ctx, "Alice", "science", "70")
			So(errors.Is(err, repository.ErrIO), ShouldBeTrue)
			So(store.Subjects(ctx), ShouldResemble, []string{"math"})

			err = store.RemoveScore(ctx, "Alice", 0)
			So(errors.Is(err, repository.ErrIO), ShouldBeTrue)
			st, _ := store.Student(ctx, "Alice")
			So(len(st.Scores), ShouldEqual, 1)

			err = store.RemoveStudent(ctx, "Alice")
			So(errors.Is(err, repository.ErrIO), ShouldBeTrue)
			So(store.Students(ctx), ShouldResemble, []string{"Alice"})

			So(len(observed), ShouldEqual, 6)
			So(observed[0], ShouldBeNil)
			So(observed[5], ShouldNotBeNil)
		})

		Convey("Then validation failures should not reach the repository", func() {
			before := repo.saves
			_, _ = store.RecordScore(ctx, "Alice", "math", "abc")
			_ = store.AddStudent(ctx, "")
			_ = store.RemoveScore(ctx, "Alice", 9)
			So(repo.saves, ShouldEqual, before)
		})
	})
}

func TestStore_RoundTrip(t *testing.T) {
	Convey("Given a store persisted to a JSON file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "scores.json")
		store, err := records.Open(ctx, records.WithRepository(repository.NewJSONFileRepository(path)))
		So(err, ShouldBeNil)

		So(store.AddStudent(ctx, "Zed"), ShouldBeNil)
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)
		_, _ = store.RecordScore(ctx, "Zed", "Math", "85.5")
		_, _ = store.RecordScore(ctx, "Zed", "history", "40")
		_, _ = store.RecordScore(ctx, "Alice", "science", "99.99")
		So(store.RemoveScore(ctx, "Zed", 1), ShouldBeNil)

		Convey("When a new store opens the same file", func() {
			reopened, err := records.Open(ctx, records.WithRepository(repository.NewJSONFileRepository(path)))
			So(err, ShouldBeNil)

			Convey("Then students, score order and subjects should be identical", func() {
				So(reopened.Students(ctx), ShouldResemble, store.Students(ctx))
				So(reopened.Subjects(ctx), ShouldResemble, []string{"history", "math", "science"})
				want := slices.Collect(store.ExportRows(ctx))
				got := slices.Collect(reopened.ExportRows(ctx))
				So(len(got), ShouldEqual, len(want))
				for i := range want {
					So(got[i].Student, ShouldEqual, want[i].Student)
					So(got[i].Subject, ShouldEqual, want[i].Subject)
					So(got[i].Score.Equal(want[i].Score), ShouldBeTrue)
				}
			})
		})

		Convey("When names differing only in invalid bytes are offered", func() {
			So(errors.Is(store.AddStudent(ctx, "Bob\xff"), records.ErrInvalidText), ShouldBeTrue)
			So(errors.Is(store.AddStudent(ctx, "Bob\xfe"), records.ErrInvalidText), ShouldBeTrue)

			Convey("Then the file should still reopen cleanly", func() {
				reopened, err := records.Open(ctx, records.WithRepository(repository.NewJSONFileRepository(path)))
				So(err, ShouldBeNil)
				So(reopened.Students(ctx), ShouldResemble, []string{"Zed", "Alice"})
			})
		})
	})

	Convey("Given a file whose directory cannot be synced", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "scores.json")
		failSync := repository.WithDirSyncer(func(string) error { return errors.New("sync not supported") })
		store, err := records.Open(ctx, records.WithRepository(repository.NewJSONFileRepository(path, failSync)))
		So(err, ShouldBeNil)

		Convey("When a student is added", func() {
			So(store.AddStudent(ctx, "Alice"), ShouldBeNil)

			Convey("Then memory and disk should agree", func() {
				So(store.Students(ctx), ShouldResemble, []string{"Alice"})
				reopened, err := records.Open(ctx, records.WithRepository(repository.NewJSONFileRepository(path)))
				So(err, ShouldBeNil)
				So(reopened.Students(ctx), ShouldResemble, []string{"Alice"})
			})
		})
	})

	Convey("Given a corrupt document", t, func() {
		repo := repository.NewMemoryRepositoryFrom([]byte(`{"students": 5}`))

		Convey("Then Open should surface corruption rather than an empty store", func() {
			store, err := records.Open(context.Background(), records.WithRepository(repo))
			So(store, ShouldBeNil)
			So(errors.Is(err, repository.ErrCorruptData), ShouldBeTrue)
		})
	})
}

func TestStore_ConcurrentAccess(t *testing.T) {
	Convey("Given concurrent writers on one student", t, func() {
		ctx := context.Background()
		store := records.New()
		So(store.AddStudent(ctx, "Alice"), ShouldBeNil)

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = store.RecordScore(ctx, "Alice", "math", "50")
				_ = store.Statistics(ctx, "")
			}()
		}
		wg.Wait()

		Convey("Then every score should be kept", func() {
			So(store.Size(ctx).Scores, ShouldEqual, 20)
			So(fixed(store, "Alice", "math"), ShouldEqual, "50.00")
		})
	})
}
