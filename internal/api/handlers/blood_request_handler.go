package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddoc-api-server/internal/service"
)

type BloodRequestHandler struct {
	Transfers *service.TransferService
}

type CreateBloodRequestRequest struct {
	TargetHospitalID string `json:"targetHospitalId"`
	BloodType        string `json:"bloodType"`
	UnitsRequested   int    `json:"unitsRequested"`
}

type RespondRequest struct {
	Status          string  `json:"status"`
	ResponseMessage *string `json:"responseMessage"`
}

func (h *BloodRequestHandler) CreateBloodRequest(c *gin.Context) {
	var req CreateBloodRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	created, err := h.Transfers.Create(c.Request.Context(), principal(c), service.CreateTransferInput{
		TargetHospitalID: req.TargetHospitalID,
		BloodType:        req.BloodType,
		UnitsRequested:   req.UnitsRequested,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *BloodRequestHandler) GetOutgoing(c *gin.Context) {
	out, err := h.Transfers.ListOutgoing(c.Request.Context(), principal(c), c.Param("hospitalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *BloodRequestHandler) GetIncoming(c *gin.Context) {
	in, err := h.Transfers.ListIncoming(c.Request.Context(), principal(c), c.Param("hospitalId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, in)
}

// Respond approves or denies a transfer. Approval fulfils it immediately.
func (h *BloodRequestHandler) Respond(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updated, err := h.Transfers.Respond(c.Request.Context(), principal(c), c.Param("id"), service.RespondInput{
		Status:  req.Status,
		Message: req.ResponseMessage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
