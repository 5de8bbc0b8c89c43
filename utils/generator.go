package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"outreachly/models"
)

// Generator errors
var (
	ErrGeneratorRateLimited  = errors.New("content generator rate limited")
	ErrGeneratorUnconfigured = errors.New("content generator is not configured")
)

// GeneratedEmail is the resolved output of one generation call
type GeneratedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerationRequest carries everything the generator needs to personalize
// one email for one prospect.
type GenerationRequest struct {
	Prospect *models.Prospect
	Tone     string // casual, professional, hyper-personal
	Length   string // short, medium
	OwnerID  uint
}

// ContentGenerator produces a personalized subject and body for a prospect.
// Any error means the caller must not schedule the step.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedEmail, error)
}

// LLMGenerator calls an OpenAI-compatible chat completions endpoint
type LLMGenerator struct {
	BaseURL string
	APIKey  string
	Model   string

	client *fasthttp.Client
}

func NewLLMGenerator(baseURL, apiKey, model string) *LLMGenerator {
	return &LLMGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client: &fasthttp.Client{
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (*GeneratedEmail, error) {
	if g.APIKey == "" {
		return nil, ErrGeneratorUnconfigured
	}

	payload, err := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature:    0.7,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(httpReq)
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(g.BaseURL + "/v1/chat/completions")
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
	httpReq.SetBody(payload)

	timeout := 45 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if err := g.client.DoTimeout(httpReq, httpResp, timeout); err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	switch httpResp.StatusCode() {
	case fasthttp.StatusOK:
		// fall through to parsing
	case fasthttp.StatusTooManyRequests:
		return nil, ErrGeneratorRateLimited
	default:
		return nil, fmt.Errorf("generation request returned status %d", httpResp.StatusCode())
	}

	var parsed chatResponse
	if err := json.Unmarshal(httpResp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("generation error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("generation response contained no choices")
	}

	var email GeneratedEmail
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &email); err != nil {
		return nil, fmt.Errorf("generated content was not valid JSON: %w", err)
	}
	if email.Subject == "" || email.Body == "" {
		return nil, errors.New("generated content missing subject or body")
	}

	return &email, nil
}

const systemPrompt = `You write concise, personalized cold sales emails. ` +
	`Respond with a JSON object containing exactly two string fields: "subject" and "body".`

func buildPrompt(req GenerationRequest) string {
	p := req.Prospect

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s outreach email in a %s tone to the following prospect.\n\n", lengthHint(req.Length), toneHint(req.Tone))
	fmt.Fprintf(&b, "Name: %s\n", p.FullName())
	if p.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
	}
	if p.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", p.Company)
	}
	if p.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", p.Industry)
	}
	if p.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", p.Website)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", p.Notes)
	}
	if p.ResearchSummary != "" {
		fmt.Fprintf(&b, "Research: %s\n", p.ResearchSummary)
	}
	return b.String()
}

func toneHint(tone string) string {
	switch tone {
	case models.ToneProfessional:
		return "professional"
	case models.ToneHyperPersonal:
		return "highly personalized, referencing specific details about the prospect"
	default:
		return "casual, friendly"
	}
}

func lengthHint(length string) string {
	if length == models.LengthMedium {
		return "medium-length (3-5 short paragraphs)"
	}
	return "short (under 120 words)"
}
