package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/ai"
	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/models"
)

type AIClient interface {
	Chat(ctx context.Context, message string) (string, error)
	AnalyzeReport(ctx context.Context, reportText string) (*models.ReportAnalysis, error)
}

type SMSSender interface {
	Send(ctx context.Context, phone, body string) (string, error)
}

// Archiver stores a JSON document and returns where it can be fetched.
type Archiver interface {
	ArchiveJSON(ctx context.Context, objectKey string, v any) (string, error)
}

type SMSInput struct {
	TargetHospitalPhone string
	PatientBloodType    string
	PatientName         string
	Message             string
}

type reportArchive struct {
	UserID     string                 `json:"userId"`
	ReportText string                 `json:"reportText"`
	Analysis   *models.ReportAnalysis `json:"analysis"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// AssistService passes chat, report analysis and SMS requests to external providers.
type AssistService struct {
	ai       AIClient
	sms      SMSSender
	archiver Archiver // optional
	now      func() time.Time
}

func NewAssistService(aiClient AIClient, sms SMSSender, archiver Archiver) *AssistService {
	return &AssistService{ai: aiClient, sms: sms, archiver: archiver, now: time.Now}
}

func (s *AssistService) Chat(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperr.Validation("Message is required for chat.")
	}
	reply, err := s.ai.Chat(ctx, message)
	if err != nil {
		return "", apperr.Upstream("Server error during AI chat.", err)
	}
	return reply, nil
}

func (s *AssistService) AnalyzeReport(ctx context.Context, caller auth.Principal, reportText string) (*models.ReportAnalysis, error) {
	if strings.TrimSpace(reportText) == "" {
		return nil, apperr.Validation("Report text is required for AI analysis.")
	}
	analysis, err := s.ai.AnalyzeReport(ctx, reportText)
	if err != nil {
		if errors.Is(err, ai.ErrParse) {
			return nil, apperr.Upstream("Failed to parse AI analysis response.", err)
		}
		return nil, apperr.Upstream("Server error during AI report analysis.", err)
	}

	if s.archiver != nil {
		key := fmt.Sprintf("reports/%s/%s.json", caller.ID, uuid.NewString())
		url, err := s.archiver.ArchiveJSON(ctx, key, reportArchive{
			UserID:     caller.ID,
			ReportText: reportText,
			Analysis:   analysis,
			CreatedAt:  s.now(),
		})
		if err != nil {
			log.Warn().Err(err).Str("user_id", caller.ID).Msg("report archive failed")
		} else {
			analysis.ArchiveURL = url
		}
	}
	return analysis, nil
}

// SendBloodRequestSMS sends the message once; there is no delivery tracking.
func (s *AssistService) SendBloodRequestSMS(ctx context.Context, in SMSInput) (string, error) {
	if strings.TrimSpace(in.TargetHospitalPhone) == "" || in.PatientBloodType == "" ||
		strings.TrimSpace(in.PatientName) == "" || strings.TrimSpace(in.Message) == "" {
		return "", apperr.Validation("All required fields (hospital phone, patient blood type, patient name, message) are needed.")
	}

	sid, err := s.sms.Send(ctx, in.TargetHospitalPhone, in.Message)
	if err != nil {
		return "", apperr.Upstream("Failed to send SMS via Twilio.", err)
	}
	log.Info().
		Str("patient", in.PatientName).
		Str("blood_type", in.PatientBloodType).
		Str("sid", sid).
		Msg("blood request sms sent")
	return sid, nil
}
