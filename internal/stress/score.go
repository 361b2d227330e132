package stress

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"AldebaranChat/internal/backend"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidResponses = errors.New("invalid responses")

type answers struct {
	Responses []int `validate:"len=10,dive,min=0,max=4"`
}

var validate = validator.New()

// Validate checks there is one 0-4 answer per question
func Validate(responses []int) error {
	err := validate.Struct(answers{Responses: responses})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidResponses, err)
	}
	fe := verrs[0]
	if fe.Tag() == "len" {
		return fmt.Errorf("%w: PSS-10 requires exactly %d responses, got %d", ErrInvalidResponses, QuestionCount, len(responses))
	}
	return fmt.Errorf("%w: %s must be a number between 0 and 4, got %v", ErrInvalidResponses, fe.Field(), fe.Value())
}

// Score computes the PSS-10 total locally. Reverse-scored items count 4-r.
func Score(responses []int) (backend.PSS10Results, error) {
	if err := Validate(responses); err != nil {
		return backend.PSS10Results{}, err
	}

	total := 0
	for i, r := range responses {
		if Questions[i].ReverseScored {
			total += 4 - r
		} else {
			total += r
		}
	}

	level := LevelFor(total)
	return backend.PSS10Results{
		TotalScore:        total,
		StressLevel:       level.Name,
		StressDescription: level.Description,
		Color:             level.Color,
		MaxPossibleScore:  MaxScore,
		Percentage:        math.Round(float64(total)/MaxScore*1000) / 10,
	}, nil
}

func label(category string) string {
	return strings.ReplaceAll(category, "_", " ")
}

// Indicators classifies each answer as a concern, a strength or neither
func Indicators(responses []int) (concerns, strengths []backend.Indicator) {
	for i, r := range responses {
		if i >= len(Questions) {
			break
		}
		q := Questions[i]
		ind := backend.Indicator{QuestionID: q.ID, Category: q.Category}

		switch {
		case q.ReverseScored && r <= 1:
			ind.Concern = "Low " + label(q.Category)
			concerns = append(concerns, ind)
		case q.ReverseScored && r >= 3:
			ind.Strength = "Good " + label(q.Category)
			strengths = append(strengths, ind)
		case !q.ReverseScored && r >= 3:
			ind.Concern = "High " + label(q.Category)
			concerns = append(concerns, ind)
		case !q.ReverseScored && r <= 1:
			ind.Strength = "Low " + label(q.Category)
			strengths = append(strengths, ind)
		}
	}
	return concerns, strengths
}

var baseRecommendations = map[string][]string{
	"low": {
		"Continue maintaining your current stress management strategies",
		"Regular exercise and good sleep hygiene",
		"Consider mindfulness or meditation practices for prevention",
	},
	"moderate": {
		"Practice stress management techniques like deep breathing",
		"Ensure adequate sleep (7-9 hours) and regular exercise",
		"Consider talking to friends, family, or a counselor",
		"Try to identify and address specific stress triggers",
	},
	"high": {
		"Consider speaking with a healthcare professional",
		"Practice immediate stress relief techniques (breathing, grounding)",
		"Prioritize self-care and reduce non-essential commitments",
		"Seek support from friends, family, or mental health professionals",
	},
}

// Recommendations returns advice for a stress level, extended by the
// categories of the concerns found. Unknown levels get the moderate advice.
func Recommendations(level string, concerns []backend.Indicator) []string {
	base, ok := baseRecommendations[level]
	if !ok {
		base = baseRecommendations["moderate"]
	}
	out := append([]string(nil), base...)

	var control, overwhelming bool
	for _, c := range concerns {
		control = control || strings.Contains(c.Category, "control")
		overwhelming = overwhelming || strings.Contains(c.Category, "overwhelming")
	}
	if control {
		out = append(out, "Focus on building sense of control through planning and organization")
	}
	if overwhelming {
		out = append(out, "Break large tasks into smaller, manageable steps")
	}
	return out
}

// Risk grades urgency from the total score and the number of concerns
func Risk(score, concerns int) backend.RiskAssessment {
	switch {
	case score >= 30 || concerns >= 7:
		return backend.RiskAssessment{Level: "high", Urgency: "Consider professional support soon", Color: "red"}
	case score >= 20 || concerns >= 4:
		return backend.RiskAssessment{Level: "moderate", Urgency: "Monitor and take action if worsening", Color: "yellow"}
	default:
		return backend.RiskAssessment{Level: "low", Urgency: "Continue current positive practices", Color: "green"}
	}
}

// Local builds an analysis without the model prediction, from the score
// bands alone
func Local(responses []int) (backend.AnalysisResults, error) {
	pss, err := Score(responses)
	if err != nil {
		return backend.AnalysisResults{}, err
	}
	concerns, strengths := Indicators(responses)

	return backend.AnalysisResults{
		PSS10Results: pss,
		Analysis: backend.Analysis{
			HighStressIndicators: concerns,
			PositiveIndicators:   strengths,
			KeyConcerns:          firstN(concerns, 3, func(i backend.Indicator) string { return i.Concern }),
			Strengths:            firstN(strengths, 3, func(i backend.Indicator) string { return i.Strength }),
		},
		Recommendations: Recommendations(pss.StressLevel, concerns),
		RiskAssessment:  Risk(pss.TotalScore, len(concerns)),
	}, nil
}

func firstN(in []backend.Indicator, n int, pick func(backend.Indicator) string) []string {
	out := []string{}
	for i, ind := range in {
		if i == n {
			break
		}
		out = append(out, pick(ind))
	}
	return out
}
