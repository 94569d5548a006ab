package exam

import (
	"math"

	"entrytest/internal/question"
)

// Answers maps a question id to the selected option index.
type Answers map[int64]int

// Score counts the ids in questionIDs whose answer equals the correct option.
// Missing answers and questions absent from correct count as wrong. Answers
// for ids outside questionIDs are ignored.
func Score(questionIDs []int64, answers Answers, correct map[int64]int) int {
	score := 0
	for _, id := range questionIDs {
		want, ok := correct[id]
		if !ok {
			continue
		}
		got, ok := answers[id]
		if ok && got == want {
			score++
		}
	}
	return score
}

// Percentage is score over total rounded half up to a whole percent.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(score)*100/float64(total) + 0.5))
}

func Grade(percentage int) string {
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "F"
	}
}

type SubjectScore struct {
	Subject question.Subject `json:"subject"`
	Correct int              `json:"correct"`
	Total   int              `json:"total"`
}

type ReviewItem struct {
	QuestionID    int64            `json:"question_id"`
	Subject       question.Subject `json:"subject"`
	Text          string           `json:"question_text"`
	Options       question.Options `json:"options"`
	ImageRef      *string          `json:"image_ref,omitempty"`
	Selected      *int             `json:"selected"`
	CorrectOption int              `json:"correct_option"`
	IsCorrect     bool             `json:"is_correct"`
}

type Review struct {
	Subjects []SubjectScore `json:"subjects"`
	Items    []ReviewItem   `json:"items"`
}

// BuildReview walks questionIDs in order against the current question
// content. Deleted questions are left out of the items but still count in
// the caller's total.
func BuildReview(questionIDs []int64, answers Answers, questions []question.Question) Review {
	byID := make(map[int64]question.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	perSubject := make(map[question.Subject]*SubjectScore, len(question.Subjects))
	for _, s := range question.Subjects {
		perSubject[s] = &SubjectScore{Subject: s}
	}

	items := make([]ReviewItem, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, ok := byID[id]
		if !ok {
			continue
		}
		item := ReviewItem{
			QuestionID:    id,
			Subject:       q.Subject,
			Text:          q.Text,
			Options:       q.Options,
			ImageRef:      q.ImageRef,
			CorrectOption: q.CorrectOption,
		}
		if got, ok := answers[id]; ok {
			v := got
			item.Selected = &v
			item.IsCorrect = got == q.CorrectOption
		}
		if ss, ok := perSubject[q.Subject]; ok {
			ss.Total++
			if item.IsCorrect {
				ss.Correct++
			}
		}
		items = append(items, item)
	}

	subjects := make([]SubjectScore, 0, len(question.Subjects))
	for _, s := range question.Subjects {
		subjects = append(subjects, *perSubject[s])
	}
	return Review{Subjects: subjects, Items: items}
}

func correctOptions(questions []question.Question) map[int64]int {
	out := make(map[int64]int, len(questions))
	for _, q := range questions {
		out[q.ID] = q.CorrectOption
	}
	return out
}
