package model

import "github.com/shopspring/decimal"

// Student owns an ordered list of scores. Order is the recording order and
// positional indices refer to it.
type Student struct {
	Name   string
	Scores []Score
}

// NewStudent returns a student with no scores.
func NewStudent(name string) *Student {
	return &Student{Name: name, Scores: []Score{}}
}

// Values returns the score values matching subject. An empty subject
// matches every score.
func (s *Student) Values(subject string) []decimal.Decimal {
	subject = NormalizeSubject(subject)
	values := make([]decimal.Decimal, 0, len(s.Scores))
	for _, sc := range s.Scores {
		if subject == "" || sc.Subject == subject {
			values = append(values, sc.Value)
		}
	}
	return values
}

// Clone returns a deep copy safe to hand to callers.
func (s *Student) Clone() Student {
	scores := make([]Score, len(s.Scores))
	copy(scores, s.Scores)
	return Student{Name: s.Name, Scores: scores}
}
