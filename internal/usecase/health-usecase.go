package usecase

import (
	"context"
	"time"
)

const StatusHealthy = "healthy"

type Environment struct {
	HasOpenAIKey    bool   `json:"hasOpenAIKey"`
	OpenAIKeyLength int    `json:"openAIKeyLength"`
	Runtime         string `json:"runtime"`
}

type HealthReport struct {
	Timestamp   time.Time    `json:"timestamp"`
	Environment Environment  `json:"environment"`
	OpenAITest  *ProbeResult `json:"openaiTest,omitempty"`
	Status      string       `json:"status"`
}

type HealthUsecaseDeps struct {
	OpenAI *OpenAIUsecase
}

type HealthUsecase struct {
	HealthUsecaseDeps
	now func() time.Time
}

func NewHealthUsecase(deps HealthUsecaseDeps) *HealthUsecase {
	return &HealthUsecase{
		HealthUsecaseDeps: deps,
		now:               time.Now,
	}
}

// Check never fails on a missing key; it reports the absence and skips the
// provider probe.
func (h *HealthUsecase) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Timestamp: h.now().UTC(),
		Environment: Environment{
			HasOpenAIKey:    h.OpenAI.HasAPIKey(),
			OpenAIKeyLength: h.OpenAI.APIKeyLength(),
			Runtime:         "go",
		},
		Status: StatusHealthy,
	}
	if h.OpenAI.HasAPIKey() {
		probe := h.OpenAI.Probe(ctx)
		report.OpenAITest = &probe
	}
	return report
}
