// Package ai talks to the Gemini generateContent REST endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/models"
)

var (
	ErrNotConfigured = errors.New("gemini api key not configured")
	ErrEmptyReply    = errors.New("gemini returned no text")
	ErrParse         = errors.New("failed to parse AI analysis response")
)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client is a single-shot Gemini client. Calls are not retried.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	model      string
}

func NewClient(baseURL, apiKey, model string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(60*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		apiKey:     apiKey,
		model:      model,
	}
}

// Generate sends one prompt and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	var result generateResponse
	var failure apiError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetPathParam("model", c.model).
		SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}).
		SetResult(&result).
		SetError(&failure).
		Post("/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	if resp.IsError() {
		log.Error().
			Int("status_code", resp.StatusCode()).
			Str("status", failure.Error.Status).
			Msg("Gemini API returned error")
		msg := failure.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("Gemini API error: %s (status: %d)", msg, resp.StatusCode())
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyReply
	}
	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

const chatPrompt = `You are a helpful chatbot for a blood donation and health management system. Your purpose is to provide general, basic health information and guide users to relevant sections of the application or professional help. You must not provide specific medical advice, diagnoses, or treatment plans. If a user asks for specific medical advice, instruct them to consult a healthcare professional. Provide concise and relevant answers.

Here are some examples of what you can do:
- Explain different blood types and their compatibility.
- Describe the process of blood donation.
- Provide general information about common health conditions (e.g., symptoms of anemia, benefits of a balanced diet).
- Guide users on how to use the SOS feature or find nearby hospitals.

User: %s

Chatbot:`

const analyzePrompt = `Analyze the following health report text and extract the key information in a JSON format. The JSON should contain:
- patientName (string): The name of the patient, or "Unknown" if not specified.
- summary (string): A concise summary of the report's main findings and overall health status.
- importantTopics (array of strings): A list of 3-5 important topics or main outcomes mentioned in the report.
- recommendations (array of strings): Any recommendations or next steps suggested in the report.
- urgency (string): 'critical', 'urgent', 'moderate', or 'low' based on the report's findings.
- bloodTestResults (object, optional): An object containing specific blood test results if available, e.g., { "bloodType": "O+", "hemoglobin": 12.5, "whiteBloodCells": 7000, "platelets": 200000 }.

Health Report:
"""
%s
"""

Ensure the output is a valid JSON object.`

// Chat answers a free-form health question.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	return c.Generate(ctx, fmt.Sprintf(chatPrompt, message))
}

// AnalyzeReport asks for a structured summary of a health report.
func (c *Client) AnalyzeReport(ctx context.Context, reportText string) (*models.ReportAnalysis, error) {
	text, err := c.Generate(ctx, fmt.Sprintf(analyzePrompt, reportText))
	if err != nil {
		return nil, err
	}
	return ParseAnalysis(text)
}

var fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n\\s*```")

// ParseAnalysis reads the analysis from a fenced json block, or the whole text.
func ParseAnalysis(text string) (*models.ReportAnalysis, error) {
	raw := strings.TrimSpace(text)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		raw = m[1]
	}

	var analysis models.ReportAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if analysis.ImportantTopics == nil {
		analysis.ImportantTopics = []string{}
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []string{}
	}
	return &analysis, nil
}
