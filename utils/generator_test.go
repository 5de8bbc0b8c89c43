package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"outreachly/models"
)

func TestBuildPromptIncludesProspectFields(t *testing.T) {
	prompt := buildPrompt(GenerationRequest{
		Prospect: &models.Prospect{
			Email:           "jane@acme.com",
			FirstName:       "Jane",
			LastName:        "Doe",
			Title:           "VP Engineering",
			Company:         "Acme",
			Industry:        "Logistics",
			ResearchSummary: "Domain registered 2012",
		},
		Tone:   models.ToneProfessional,
		Length: models.LengthMedium,
	})

	assert.Contains(t, prompt, "Jane Doe")
	assert.Contains(t, prompt, "VP Engineering")
	assert.Contains(t, prompt, "Acme")
	assert.Contains(t, prompt, "Logistics")
	assert.Contains(t, prompt, "Domain registered 2012")
	assert.Contains(t, prompt, "professional")
	assert.Contains(t, prompt, "medium-length")
}

func TestBuildPromptFallsBackToEmail(t *testing.T) {
	prompt := buildPrompt(GenerationRequest{
		Prospect: &models.Prospect{Email: "jane@acme.com"},
	})

	assert.Contains(t, prompt, "jane@acme.com")
	assert.Contains(t, prompt, "casual")
	assert.Contains(t, prompt, "short")
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	g := NewLLMGenerator("https://api.example.com", "", "gpt-4o-mini")

	_, err := g.Generate(context.Background(), GenerationRequest{Prospect: &models.Prospect{Email: "a@b.c"}})
	assert.ErrorIs(t, err, ErrGeneratorUnconfigured)
}
