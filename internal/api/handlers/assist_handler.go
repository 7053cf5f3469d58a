package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddoc-api-server/internal/service"
)

// AssistHandler serves the AI chat, report analysis and SMS pass-through routes.
type AssistHandler struct {
	Assist *service.AssistService
}

type ChatRequest struct {
	Message string `json:"message"`
}

type AnalyzeReportRequest struct {
	ReportText string `json:"reportText"`
}

type SendSMSRequest struct {
	TargetHospitalPhone string `json:"targetHospitalPhone"`
	PatientBloodType    string `json:"patientBloodType"`
	PatientName         string `json:"patientName"`
	Message             string `json:"message"`
}

func (h *AssistHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	reply, err := h.Assist.Chat(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (h *AssistHandler) AnalyzeReport(c *gin.Context) {
	var req AnalyzeReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	analysis, err := h.Assist.AnalyzeReport(c.Request.Context(), principal(c), req.ReportText)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (h *AssistHandler) SendBloodRequestSMS(c *gin.Context) {
	var req SendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	sid, err := h.Assist.SendBloodRequestSMS(c.Request.Context(), service.SMSInput{
		TargetHospitalPhone: req.TargetHospitalPhone,
		PatientBloodType:    req.PatientBloodType,
		PatientName:         req.PatientName,
		Message:             req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "SMS blood request successfully sent.", "twilioSid": sid})
}
