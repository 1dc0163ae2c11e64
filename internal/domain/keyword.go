package domain

import "time"

// Keyword is one normalized row of a keyword research result.
type Keyword struct {
	Phrase          string  `json:"phrase"`
	Volume          int     `json:"volume"`
	CPC             float64 `json:"cpc"`
	Difficulty      int     `json:"difficulty"`
	DifficultyLabel string  `json:"difficultyLabel"`
}

// KeywordRecord is a keyword previously researched and stored for the workspace.
type KeywordRecord struct {
	Phrase       string    `json:"phrase"`
	Volume       int       `json:"volume"`
	Difficulty   int       `json:"difficulty"`
	Idea         string    `json:"idea,omitempty"`
	ResearchedAt time.Time `json:"researchedAt"`
}
