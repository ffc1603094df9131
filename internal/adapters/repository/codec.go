package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Wire shapes. Values travel as fixed two-place decimal strings.
type scoreDocument struct {
	Subject string `json:"subject"`
	Value   string `json:"value"`
}

type studentDocument struct {
	Name   string           `json:"name"`
	Scores *[]scoreDocument `json:"scores"`
}

type rawDocument struct {
	Students json.RawMessage `json:"students"`
	Subjects *[]string       `json:"subjects"`
}

func encodeScore(sc model.Score) scoreDocument {
	return scoreDocument{Subject: sc.Subject, Value: model.FormatValue(sc.Value)}
}

func decodeScore(d scoreDocument) (model.Score, error) {
	if d.Subject == "" || d.Subject != model.NormalizeSubject(d.Subject) {
		return model.Score{}, fmt.Errorf("subject %q is not normalized", d.Subject)
	}
	v, err := decimal.NewFromString(d.Value)
	if err != nil {
		return model.Score{}, fmt.Errorf("value %s: %w", model.Excerpt(d.Value), model.ErrInvalidNumber)
	}
	if !model.Bounded(v) || !model.InRange(v) {
		return model.Score{}, fmt.Errorf("value %s: %w", model.Excerpt(d.Value), model.ErrOutOfRange)
	}
	if !model.HasScorePrecision(v) {
		return model.Score{}, fmt.Errorf("value %s has more than %d decimal places", model.Excerpt(d.Value), model.ScorePlaces)
	}
	return model.Score{Subject: d.Subject, Value: v}, nil
}

func encodeStudent(st model.Student) studentDocument {
	scores := make([]scoreDocument, len(st.Scores))
	for i, sc := range st.Scores {
		scores[i] = encodeScore(sc)
	}
	return studentDocument{Name: st.Name, Scores: &scores}
}

func decodeStudent(key string, d studentDocument) (model.Student, error) {
	if d.Name == "" || d.Name != model.NormalizeName(d.Name) {
		return model.Student{}, fmt.Errorf("student name %q is empty or untrimmed", d.Name)
	}
	if d.Name != key {
		return model.Student{}, fmt.Errorf("student key %q does not match name %q", key, d.Name)
	}
	if d.Scores == nil {
		return model.Student{}, fmt.Errorf("student %q has no scores list", d.Name)
	}
	st := model.Student{Name: d.Name, Scores: make([]model.Score, 0, len(*d.Scores))}
	for i, sd := range *d.Scores {
		sc, err := decodeScore(sd)
		if err != nil {
			return model.Student{}, fmt.Errorf("student %q score %d: %w", d.Name, i, err)
		}
		st.Scores = append(st.Scores, sc)
	}
	return st, nil
}

// Encode serializes doc as an indented JSON object. Students keep their
// order as object keys.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"students":{`)
	for i, st := range doc.Students {
		if i > 0 {
			buf.WriteByte(',')
		}
		// encoding/json would replace invalid bytes, breaking the round trip
		if err := checkText(st); err != nil {
			return nil, err
		}
		key, err := json.Marshal(st.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(encodeStudent(st))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteString(`},"subjects":`)
	subjects := doc.Subjects
	for _, sub := range subjects {
		if !utf8.ValidString(sub) {
			return nil, fmt.Errorf("subject %q: %w", sub, model.ErrInvalidText)
		}
	}
	if subjects == nil {
		subjects = []string{}
	}
	list, err := json.Marshal(subjects)
	if err != nil {
		return nil, err
	}
	buf.Write(list)
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func checkText(st model.Student) error {
	if !utf8.ValidString(st.Name) {
		return fmt.Errorf("student name %q: %w", st.Name, model.ErrInvalidText)
	}
	for _, sc := range st.Scores {
		if !utf8.ValidString(sc.Subject) {
			return fmt.Errorf("student %q subject %q: %w", st.Name, sc.Subject, model.ErrInvalidText)
		}
	}
	return nil
}

// Decode parses and validates a document. Any schema or invariant
// violation is reported as ErrCorruptData.
func Decode(data []byte) (Document, error) {
	doc, err := decode(data)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	return doc, nil
}

func decode(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw rawDocument
	if err := dec.Decode(&raw); err != nil {
		return Document{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Document{}, errors.New("trailing data after document")
	}
	if raw.Students == nil || raw.Subjects == nil {
		return Document{}, errors.New("document requires students and subjects")
	}

	students, err := decodeStudents(raw.Students)
	if err != nil {
		return Document{}, err
	}

	subjects := make([]string, 0, len(*raw.Subjects))
	seen := make(map[string]struct{}, len(*raw.Subjects))
	for _, s := range *raw.Subjects {
		if s == "" || s != model.NormalizeSubject(s) {
			return Document{}, fmt.Errorf("subject %q is not normalized", s)
		}
		if _, dup := seen[s]; dup {
			return Document{}, fmt.Errorf("subject %q listed twice", s)
		}
		seen[s] = struct{}{}
		subjects = append(subjects, s)
	}
	for _, st := range students {
		for _, sc := range st.Scores {
			if _, ok := seen[sc.Subject]; !ok {
				return Document{}, fmt.Errorf("subject %q of student %q missing from subjects", sc.Subject, st.Name)
			}
		}
	}
	return Document{Students: students, Subjects: subjects}, nil
}

// decodeStudents walks the students object token by token so key order
// survives.
func decodeStudents(raw json.RawMessage) ([]model.Student, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("students must be an object")
	}
	var students []model.Student
	names := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("students key must be a string")
		}
		if _, dup := names[key]; dup {
			return nil, fmt.Errorf("student %q listed twice", key)
		}
		var sd studentDocument
		if err := dec.Decode(&sd); err != nil {
			return nil, fmt.Errorf("student %q: %w", key, err)
		}
		st, err := decodeStudent(key, sd)
		if err != nil {
			return nil, err
		}
		names[key] = struct{}{}
		students = append(students, st)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return students, nil
}
