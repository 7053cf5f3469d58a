package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddoc-api-server/internal/service"
)

type SOSHandler struct {
	SOS *service.SOSService
}

type CreateSOSRequest struct {
	BloodType string   `json:"bloodType"`
	Urgency   string   `json:"urgency"`
	Message   *string  `json:"message"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (h *SOSHandler) CreateSOS(c *gin.Context) {
	var req CreateSOSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.SOS.Create(c.Request.Context(), principal(c), service.CreateSOSInput{
		BloodType: req.BloodType,
		Urgency:   req.Urgency,
		Message:   req.Message,
		Lat:       req.Lat,
		Lng:       req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *SOSHandler) GetForHospital(c *gin.Context) {
	out, err := h.SOS.ListIncoming(c.Request.Context(), principal(c), c.Param("hospitalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SOSHandler) GetForPatient(c *gin.Context) {
	out, err := h.SOS.ListOwn(c.Request.Context(), principal(c), c.Param("patientId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *SOSHandler) Respond(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.SOS.Respond(c.Request.Context(), principal(c), c.Param("id"), service.RespondInput{
		Status:  req.Status,
		Message: req.ResponseMessage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
