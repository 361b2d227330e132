package backend

// Envelope wraps every stress service response
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// Question is one PSS-10 item
type Question struct {
	ID            int    `json:"id"`
	Question      string `json:"question"`
	ReverseScored bool   `json:"reverse_scored,omitempty"`
	Category      string `json:"category,omitempty"`
}

// ResponseOption is one point of the 0-4 answer scale
type ResponseOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// QuestionnaireData is the payload of GET /api/questions
type QuestionnaireData struct {
	Questions        []Question       `json:"questions"`
	ResponseOptions  []ResponseOption `json:"response_options,omitempty"`
	Instructions     string           `json:"instructions,omitempty"`
	ScaleDescription string           `json:"scale_description,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze and /api/quick-score
type AnalyzeRequest struct {
	Responses []int          `json:"responses"`
	UserInfo  map[string]any `json:"user_info,omitempty"`
}

// PSS10Results is the composite score part of an analysis
type PSS10Results struct {
	TotalScore        int     `json:"total_score"`
	StressLevel       string  `json:"stress_level"`
	StressDescription string  `json:"stress_description"`
	Color             string  `json:"color"`
	MaxPossibleScore  int     `json:"max_possible_score"`
	Percentage        float64 `json:"percentage"`
}

// MLPrediction is the model-derived level with its confidence
type MLPrediction struct {
	PredictedLevel string             `json:"predicted_level"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
}

// Indicator is a concern or a strength tied to a question
type Indicator struct {
	QuestionID int    `json:"question_id"`
	Category   string `json:"category"`
	Concern    string `json:"concern,omitempty"`
	Strength   string `json:"strength,omitempty"`
}

// Analysis groups the categorized concerns and strengths
type Analysis struct {
	HighStressIndicators []Indicator `json:"high_stress_indicators"`
	PositiveIndicators   []Indicator `json:"positive_indicators"`
	KeyConcerns          []string    `json:"key_concerns"`
	Strengths            []string    `json:"strengths"`
}

// RiskAssessment is the urgency summary
type RiskAssessment struct {
	Level   string `json:"level"`
	Urgency string `json:"urgency"`
	Color   string `json:"color"`
}

// AnalysisResults is the payload of POST /api/analyze
type AnalysisResults struct {
	PSS10Results    PSS10Results   `json:"pss10_results"`
	MLPrediction    MLPrediction   `json:"ml_prediction"`
	Analysis        Analysis       `json:"analysis"`
	Recommendations []string       `json:"recommendations"`
	RiskAssessment  RiskAssessment `json:"risk_assessment"`
	Timestamp       string         `json:"timestamp"`
}

// Health is the payload of GET /api/health; it is not enveloped
type Health struct {
	Status       string `json:"status"`
	Service      string `json:"service,omitempty"`
	Version      string `json:"version,omitempty"`
	ModelTrained bool   `json:"model_trained"`
	Error        string `json:"error,omitempty"`
}
