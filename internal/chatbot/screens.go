package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/locator"
	"AldebaranChat/internal/stress"
)

// origin is the configured position hospitals are sorted from
func (cb *ChatBot) origin() *locator.Coord {
	if !cb.config.HasOrigin() {
		return nil
	}
	return &locator.Coord{Lat: *cb.config.OriginLat, Lon: *cb.config.OriginLon}
}

func (cb *ChatBot) findHospitals(ctx context.Context, location string) error {
	cb.guard.Navigate("/healthcare")
	if location == "" {
		cb.notifier.Error("Please enter a location")
		return nil
	}

	var hospitals []locator.Hospital
	err := cb.busy("Searching hospitals...", func() error {
		var err error
		hospitals, err = cb.locator.Search(ctx, location, cb.origin())
		return err
	})
	switch {
	case errors.Is(err, locator.ErrNoResults):
		cb.notifier.Error("No hospitals found in this location")
		return nil
	case errors.Is(err, locator.ErrFetchFailed):
		cb.notifier.Error("Failed to fetch hospital data")
		return nil
	case err != nil:
		cb.notifier.Error("Failed to search hospitals. Please try again.")
		return nil
	}

	cb.notifier.Success(fmt.Sprintf("Found %d hospitals", len(hospitals)))
	for i, h := range hospitals {
		distance := ""
		if h.DistanceKm != nil {
			distance = fmt.Sprintf(" (%.1f km)", *h.DistanceKm)
		}
		fmt.Fprintf(cb.out, "%d. %s%s\n   %s\n   %s\n", i+1, h.Name, distance, h.DisplayName, h.MapsURL())
	}
	return nil
}

func (cb *ChatBot) stressQuestionnaire(ctx context.Context) error {
	cb.guard.Navigate("/stress-analysis")

	var data backend.QuestionnaireData
	// Questions hands back the built-in set alongside any error
	err := cb.busy("Loading questions...", func() error {
		var err error
		data, err = cb.stress.Questions(ctx)
		return err
	})
	if err != nil {
		cb.logger.Warn("stress service unavailable, using built-in questions", "error", err)
	}

	if data.Instructions != "" {
		fmt.Fprintln(cb.out, data.Instructions)
	}
	for _, o := range data.ResponseOptions {
		fmt.Fprintf(cb.out, "  %d = %s\n", o.Value, o.Label)
	}

	responses := make([]int, 0, len(data.Questions))
	for i, q := range data.Questions {
		for {
			answer, ok := cb.ask(ctx, fmt.Sprintf("%d/%d %s\n> ", i+1, len(data.Questions), q.Question))
			if !ok {
				return nil
			}
			if answer == "/cancel" {
				cb.notifier.Info("Questionnaire cancelled")
				return nil
			}
			v, err := strconv.Atoi(answer)
			if err == nil && v >= 0 && v <= 4 {
				responses = append(responses, v)
				break
			}
			cb.notifier.Warning("Please answer with a number from 0 to 4")
		}
	}

	var res backend.AnalysisResults
	err = cb.busy("Analyzing...", func() error {
		var err error
		res, err = cb.stress.Analyze(ctx, responses, map[string]any{"source": "cli"})
		return err
	})
	if err != nil {
		local, lerr := stress.Local(responses)
		if lerr != nil {
			return lerr
		}
		cb.notifier.Warning("Stress service unavailable, showing the questionnaire score only")
		res = local
	}

	cb.printAnalysis(res)
	return nil
}

func (cb *ChatBot) printAnalysis(res backend.AnalysisResults) {
	pss := res.PSS10Results
	fmt.Fprintf(cb.out, "\nPSS-10 score: %d/%d (%.1f%%) - %s\n",
		pss.TotalScore, pss.MaxPossibleScore, pss.Percentage, pss.StressDescription)
	if res.MLPrediction.PredictedLevel != "" {
		fmt.Fprintf(cb.out, "Model prediction: %s (%.0f%% confidence)\n",
			res.MLPrediction.PredictedLevel, res.MLPrediction.Confidence*100)
	}
	if r := res.RiskAssessment; r.Level != "" {
		fmt.Fprintf(cb.out, "Risk: %s - %s\n", r.Level, r.Urgency)
	}
	if len(res.Analysis.KeyConcerns) > 0 {
		fmt.Fprintf(cb.out, "Key concerns: %s\n", strings.Join(res.Analysis.KeyConcerns, ", "))
	}
	if len(res.Analysis.Strengths) > 0 {
		fmt.Fprintf(cb.out, "Strengths: %s\n", strings.Join(res.Analysis.Strengths, ", "))
	}

	var md strings.Builder
	md.WriteString("**Recommendations**\n\n")
	for _, r := range res.Recommendations {
		md.WriteString("- " + r + "\n")
	}
	fmt.Fprintln(cb.out, cb.render(md.String()))
}
