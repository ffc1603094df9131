// Package records holds the student record store: students, their scores
// and the subjects ever recorded, with the averages and statistics derived
// from them.
package records

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/stats"
	"github.com/shopspring/decimal"
)

// Row is one exported score.
type Row struct {
	Student string
	Subject string
	Score   decimal.Decimal
}

// Size counts what the store currently holds.
type Size struct {
	Students int
	Scores   int
	Subjects int
}

// Store is the in-memory record store. Every mutation is persisted through
// the configured repository before it reports success; a failed save rolls
// the mutation back. One mutex guards the students, the subjects and the
// save, so no caller observes a half-applied update.
type Store struct {
	mu sync.Mutex

	order    []string // student names in insertion order
	students map[string]*model.Student

	subjects     map[string]struct{}
	subjectOrder []string

	repo    repository.Repository
	observe PersistObserver
}

// New returns an empty store. Without WithRepository it persists to memory.
func New(opts ...Option) *Store {
	s := &Store{
		students: make(map[string]*model.Student),
		subjects: make(map[string]struct{}),
		repo:     repository.NewMemoryRepository(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a store and fills it from the repository. A corrupt document
// is returned as repository.ErrCorruptData so the caller can choose between
// aborting and starting empty.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	s := New(opts...)
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.restore(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// restore replaces the state with doc. Callers must not hold s.mu.
func (s *Store) restore(doc repository.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	students := make(map[string]*model.Student, len(doc.Students))
	order := make([]string, 0, len(doc.Students))
	for _, st := range doc.Students {
		if st.Name == "" {
			return fmt.Errorf("%w: empty student name", repository.ErrCorruptData)
		}
		if _, dup := students[st.Name]; dup {
			return fmt.Errorf("%w: duplicate student %q", repository.ErrCorruptData, st.Name)
		}
		c := st.Clone()
		students[st.Name] = &c
		order = append(order, st.Name)
	}
	subjects := make(map[string]struct{}, len(doc.Subjects))
	subjectOrder := make([]string, 0, len(doc.Subjects))
	add := func(subject string) {
		if _, ok := subjects[subject]; !ok {
			subjects[subject] = struct{}{}
			subjectOrder = append(subjectOrder, subject)
		}
	}
	for _, subject := range doc.Subjects {
		add(subject)
	}
	for _, name := range order {
		for _, sc := range students[name].Scores {
			add(sc.Subject)
		}
	}

	s.students, s.order = students, order
	s.subjects, s.subjectOrder = subjects, subjectOrder
	return nil
}

func (s *Store) snapshot() repository.Document {
	doc := repository.Document{
		Students: make([]model.Student, 0, len(s.order)),
		Subjects: slices.Clone(s.subjectOrder),
	}
	for _, name := range s.order {
		doc.Students = append(doc.Students, s.students[name].Clone())
	}
	return doc
}

// persist saves the current state. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	start := time.Now()
	err := s.repo.Save(ctx, s.snapshot())
	if s.observe != nil {
		s.observe(time.Since(start), err)
	}
	return err
}

// AddStudent registers a student with no scores.
func (s *Store) AddStudent(ctx context.Context, name string) error {
	name = model.NormalizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	if !utf8.ValidString(name) {
		return validation(fmt.Errorf("name %s: %w", model.Excerpt(name), ErrInvalidText))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, model.Excerpt(name))
	}
	s.students[name] = model.NewStudent(name)
	s.order = append(s.order, name)

	if err := s.persist(ctx); err != nil {
		delete(s.students, name)
		s.order = s.order[:len(s.order)-1]
		return err
	}
	return nil
}

// RemoveStudent deletes a student and every score it owns.
func (s *Store) RemoveStudent(ctx context.Context, name string) error {
	name = model.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[name]
	if !ok {
		return notFound(name)
	}
	idx := slices.Index(s.order, name)
	delete(s.students, name)
	s.order = slices.Delete(s.order, idx, idx+1)

	if err := s.persist(ctx); err != nil {
		s.students[name] = st
		s.order = slices.Insert(s.order, idx, name)
		return err
	}
	return nil
}

// RecordScore appends a score for subject to the named student. raw must
// parse as a decimal in [0, 100]; it is kept to two places.
func (s *Store) RecordScore(ctx context.Context, name, subject, raw string) (model.Score, error) {
	name = model.NormalizeName(name)
	// parsed outside the lock; an unknown student still reports NotFound first
	sc, parseErr := model.NewScore(subject, raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[name]
	if !ok {
		return model.Score{}, notFound(name)
	}
	if parseErr != nil {
		return model.Score{}, validation(parseErr)
	}

	st.Scores = append(st.Scores, sc)
	_, known := s.subjects[sc.Subject]
	if !known {
		s.subjects[sc.Subject] = struct{}{}
		s.subjectOrder = append(s.subjectOrder, sc.Subject)
	}

	if err := s.persist(ctx); err != nil {
		st.Scores = st.Scores[:len(st.Scores)-1]
		if !known {
			delete(s.subjects, sc.Subject)
			s.subjectOrder = s.subjectOrder[:len(s.subjectOrder)-1]
		}
		return model.Score{}, err
	}
	return sc, nil
}

// RemoveScore removes the score at index; later scores shift down by one.
// The subject stays in the subjects set.
func (s *Store) RemoveScore(ctx context.Context, name string, index int) error {
	name = model.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[name]
	if !ok {
		return notFound(name)
	}
	if index < 0 || index >= len(st.Scores) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidIndex, index, len(st.Scores))
	}
	removed := st.Scores[index]
	st.Scores = slices.Delete(st.Scores, index, index+1)

	if err := s.persist(ctx); err != nil {
		st.Scores = slices.Insert(st.Scores, index, removed)
		return err
	}
	return nil
}

// Average returns the mean of the student's scores for subject, or of all
// scores when subject is empty. No matching scores yields 0.
func (s *Store) Average(_ context.Context, name, subject string) (decimal.Decimal, error) {
	name = model.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[name]
	if !ok {
		return decimal.Zero, notFound(name)
	}
	return stats.Mean(st.Values(subject)), nil
}

// AllAverages maps every student to their average under the same rule as
// Average.
func (s *Store) AllAverages(_ context.Context, subject string) map[string]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(s.students))
	for name, st := range s.students {
		out[name] = stats.Mean(st.Values(subject))
	}
	return out
}

// Statistics summarizes every score in the store, optionally only those
// for subject.
func (s *Store) Statistics(_ context.Context, subject string) stats.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var values []decimal.Decimal
	for _, name := range s.order {
		values = append(values, s.students[name].Values(subject)...)
	}
	return stats.Summarize(values)
}

// Students lists student names in insertion order.
func (s *Store) Students(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// Subjects lists every subject ever recorded, sorted.
func (s *Store) Subjects(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.subjectOrder)
	slices.Sort(out)
	return out
}

// Student returns a copy of one student with its ordered scores.
func (s *Store) Student(_ context.Context, name string) (model.Student, error) {
	name = model.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[name]
	if !ok {
		return model.Student{}, notFound(name)
	}
	return st.Clone(), nil
}

// Size reports current counts.
func (s *Store) Size(_ context.Context) Size {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := Size{Students: len(s.students), Subjects: len(s.subjects)}
	for _, st := range s.students {
		size.Scores += len(st.Scores)
	}
	return size
}

// ExportRows yields one row per recorded score in student then score
// insertion order. Each iteration reads the state as of its start, so the
// sequence can be ranged over again to see later changes.
func (s *Store) ExportRows(_ context.Context) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, row := range s.rows() {
			if !yield(row) {
				return
			}
		}
	}
}

func (s *Store) rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []Row
	for _, name := range s.order {
		for _, sc := range s.students[name].Scores {
			rows = append(rows, Row{Student: name, Subject: sc.Subject, Score: sc.Value})
		}
	}
	return rows
}
