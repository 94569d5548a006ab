package question

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Subject string

const (
	English Subject = "English"
	Urdu    Subject = "Urdu"
	Math    Subject = "Math"
)

// Subjects lists every subject in the order a test is composed.
var Subjects = []Subject{English, Urdu, Math}

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

var Difficulties = []Difficulty{Easy, Medium, Hard}

func ParseSubject(v string) (Subject, bool) {
	for _, s := range Subjects {
		if strings.EqualFold(strings.TrimSpace(v), string(s)) {
			return s, true
		}
	}
	return "", false
}

func ParseDifficulty(v string) (Difficulty, bool) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(v), string(d)) {
			return d, true
		}
	}
	return "", false
}

// Options is the fixed set of four answer choices; CorrectOption indexes it.
type Options [4]string

type Question struct {
	ID            int64      `json:"id"`
	Subject       Subject    `json:"subject"`
	Difficulty    Difficulty `json:"difficulty"`
	ClassLevel    string     `json:"class_level"`
	Text          string     `json:"question_text"`
	Options       Options    `json:"options"`
	CorrectOption int        `json:"correct_option"`
	ImageRef      *string    `json:"image_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Filter selects a pool of question ids. Nil fields are not constrained.
type Filter struct {
	Subject    Subject
	ClassLevel *string
	Difficulty *Difficulty
}

func encodeOptions(o Options) ([]byte, error) {
	return json.Marshal(o[:])
}

// decodeOptions is the storage-boundary check for the options column.
func decodeOptions(raw []byte) (Options, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	if len(list) != len(Options{}) {
		return Options{}, fmt.Errorf("decode options: expected %d entries, got %d", len(Options{}), len(list))
	}
	var out Options
	copy(out[:], list)
	return out, nil
}
