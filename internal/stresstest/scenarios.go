package stresstest

import "github.com/p-n-ai/pai-arena/internal/answer"

// DefaultScenarios returns the built-in battery. Each call returns fresh
// values so callers may append definition-specific scenarios.
func DefaultScenarios() []Scenario {
	revenue := answer.Question{ID: "q1", Text: "What drives top-line growth?", AcceptableAnswers: []string{"revenue"}}
	satisfaction := func(id string) answer.Question {
		return answer.Question{
			ID:                id,
			Text:              "What does a loyal customer base reflect?",
			AcceptableAnswers: []string{"customer satisfaction; client happiness; user contentment"},
		}
	}
	strategy := answer.Question{
		ID:                "q2",
		Text:              "Name the plan for winning a larger slice of the market.",
		AcceptableAnswers: []string{"market share growth strategy"},
	}

	return []Scenario{
		{
			Label:            "exact match",
			Questions:        []answer.Question{revenue},
			Answers:          map[string]string{"q1": "revenue"},
			ExpectedAccuracy: 1,
		},
		{
			Label:       "case and whitespace noise",
			Description: "Casing, padding, punctuation and a leading article are ignored.",
			Questions: []answer.Question{
				revenue,
				{ID: "q2", Text: "What do shareholders expect back?", AcceptableAnswers: []string{"return on investment"}},
			},
			Answers:          map[string]string{"q1": "  REVENUE.  ", "q2": "The   Return on   Investment!"},
			ExpectedAccuracy: 1,
		},
		{
			Label:            "synonym list",
			Questions:        []answer.Question{satisfaction("q1")},
			Answers:          map[string]string{"q1": "customer happiness"},
			ExpectedAccuracy: 1,
		},
		{
			Label: "high word overlap",
			Questions: []answer.Question{
				{ID: "q1", Text: "Which metric tracks how pleased buyers are?", AcceptableAnswers: []string{"customer satisfaction rate"}},
			},
			Answers:          map[string]string{"q1": "customer satisfaction rate improvement"},
			ExpectedAccuracy: 1,
		},
		{
			Label: "borderline semantic overlap",
			Questions: []answer.Question{
				{ID: "q1", Text: "What is the retention goal?", AcceptableAnswers: []string{"increase quarterly market retention"}},
			},
			Answers:          map[string]string{"q1": "boost quarterly market retention"},
			ExpectedAccuracy: 1,
		},
		{
			Label:            "mixed session",
			Description:      "One correct and one off-topic answer.",
			Questions:        []answer.Question{revenue, strategy},
			Answers:          map[string]string{"q1": "Revenue", "q2": "hire more staff"},
			ExpectedAccuracy: 0.5,
		},
		{
			Label:            "wrong answer",
			Questions:        []answer.Question{revenue, {ID: "q2", Text: "What drives bottom-line growth?", AcceptableAnswers: []string{"profit"}}},
			Answers:          map[string]string{"q1": "banana", "q2": "banana"},
			ExpectedAccuracy: 0,
			Negative:         true,
		},
		{
			Label:            "empty answer",
			Questions:        []answer.Question{revenue, satisfaction("q2")},
			Answers:          map[string]string{"q1": "", "q2": "   "},
			ExpectedAccuracy: 0,
			Negative:         true,
		},
		{
			Label:            "gibberish and low overlap",
			Questions:        []answer.Question{revenue, strategy},
			Answers:          map[string]string{"q1": "asdf qwer zxcv", "q2": "growth"},
			ExpectedAccuracy: 0,
			Negative:         true,
		},
	}
}
