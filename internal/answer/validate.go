package answer

import "math"

// Question is a prompt with the reference answers that satisfy it.
type Question struct {
	ID                string   `json:"id" yaml:"id"`
	Text              string   `json:"text" yaml:"text"`
	AcceptableAnswers []string `json:"acceptable_answers" yaml:"acceptable_answers"`
}

// QuestionResult is the immutable verdict for one answered question.
type QuestionResult struct {
	QuestionID    string `json:"question_id,omitempty"`
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Reason        Reason `json:"reason"`
	Detail        string `json:"detail"`
	MatchedAnswer string `json:"matched_answer,omitempty"`
}

// Validate checks userAnswer against every expanded acceptable answer and
// stops at the first match. A question without acceptable answers can never
// be answered correctly.
func Validate(question, userAnswer string, acceptable []string) QuestionResult {
	result := QuestionResult{
		Question:   question,
		UserAnswer: userAnswer,
		Reason:     ReasonNoMatch,
	}

	candidates := Expand(acceptable)
	if len(candidates) == 0 {
		result.Detail = "no acceptable answers configured"
		return result
	}

	user := Normalize(userAnswer)

	var best Verdict
	seen := false
	for _, c := range candidates {
		v := Evaluate(user, Normalize(c))
		if v.IsMatch {
			result.IsCorrect = true
			result.Reason = v.Reason
			result.Detail = v.Detail
			result.MatchedAnswer = c
			return result
		}
		if !seen || v.Overlap >= best.Overlap {
			best = v
			seen = true
		}
	}

	result.Reason = best.Reason
	result.Detail = best.Detail
	return result
}

// ValidateQuestion is Validate for a Question value.
func ValidateQuestion(q Question, userAnswer string) QuestionResult {
	r := Validate(q.Text, userAnswer, q.AcceptableAnswers)
	r.QuestionID = q.ID
	return r
}

// ValidateSession grades every question, treating a missing answer as empty,
// and returns the per-question results with the session accuracy.
func ValidateSession(questions []Question, answers map[string]string) ([]QuestionResult, float64) {
	results := make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		results = append(results, ValidateQuestion(q, answers[q.ID]))
	}
	return results, Accuracy(results)
}

// Accuracy returns the fraction of correct results. No results means zero.
func Accuracy(results []QuestionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range results {
		if r.IsCorrect {
			correct++
		}
	}
	return float64(correct) / float64(len(results))
}

// Percent rounds an accuracy fraction to an integer percentage for reporting.
func Percent(accuracy float64) int {
	return int(math.Round(accuracy * 100))
}
