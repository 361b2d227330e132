package stress

import "AldebaranChat/internal/backend"

// QuestionCount is the number of PSS-10 items
const QuestionCount = 10

// MaxScore is the highest possible PSS-10 total
const MaxScore = 40

// Questions is the built-in PSS-10 set used when the service cannot be
// reached
var Questions = []backend.Question{
	{ID: 1, Question: "In the last month, how often have you been upset because of something that happened unexpectedly?", Category: "unpredictability"},
	{ID: 2, Question: "In the last month, how often have you felt that you were unable to control the important things in your life?", Category: "lack_of_control"},
	{ID: 3, Question: "In the last month, how often have you felt nervous and stressed?", Category: "nervousness"},
	{ID: 4, Question: "In the last month, how often have you felt confident about your ability to handle your personal problems?", ReverseScored: true, Category: "confidence"},
	{ID: 5, Question: "In the last month, how often have you felt that things were going your way?", ReverseScored: true, Category: "positive_perception"},
	{ID: 6, Question: "In the last month, how often have you found that you could not cope with all the things that you had to do?", Category: "overwhelming"},
	{ID: 7, Question: "In the last month, how often have you been able to control irritations in your life?", ReverseScored: true, Category: "control_irritations"},
	{ID: 8, Question: "In the last month, how often have you felt that you were on top of things?", ReverseScored: true, Category: "mastery"},
	{ID: 9, Question: "In the last month, how often have you been angered because of things that were outside of your control?", Category: "external_anger"},
	{ID: 10, Question: "In the last month, how often have you felt difficulties were piling up so high that you could not overcome them?", Category: "overwhelmed"},
}

// ResponseOptions is the 0-4 answer scale
var ResponseOptions = []backend.ResponseOption{
	{Value: 0, Label: "Never"},
	{Value: 1, Label: "Almost Never"},
	{Value: 2, Label: "Sometimes"},
	{Value: 3, Label: "Fairly Often"},
	{Value: 4, Label: "Very Often"},
}

// Fallback is the questionnaire shown when GET /api/questions fails
func Fallback() backend.QuestionnaireData {
	return backend.QuestionnaireData{
		Questions:        append([]backend.Question(nil), Questions...),
		ResponseOptions:  append([]backend.ResponseOption(nil), ResponseOptions...),
		Instructions:     "For each question, choose the response that best describes how you have felt in the last month.",
		ScaleDescription: "Rate each item from 0 (Never) to 4 (Very Often)",
	}
}

// Level is one stress band
type Level struct {
	Name        string
	Min, Max    int
	Description string
	Color       string
}

// Levels are the PSS-10 bands in ascending order
var Levels = []Level{
	{Name: "low", Min: 0, Max: 13, Description: "Low perceived stress", Color: "green"},
	{Name: "moderate", Min: 14, Max: 26, Description: "Moderate perceived stress", Color: "yellow"},
	{Name: "high", Min: 27, Max: 40, Description: "High perceived stress", Color: "red"},
}

// LevelFor returns the band containing score
func LevelFor(score int) Level {
	for _, l := range Levels {
		if score >= l.Min && score <= l.Max {
			return l
		}
	}
	return Levels[0]
}
