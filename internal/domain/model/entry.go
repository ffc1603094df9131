package model

// ScoreEntry is one score read from an import source, not yet validated.
// Line is the 1-based source line, used when reporting a rejected entry.
type ScoreEntry struct {
	Line    int
	Student string
	Subject string
	Score   string
}
