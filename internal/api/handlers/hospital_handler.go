// server/internal/api/handlers/hospital_handler.go
package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/export"
	"blooddoc-api-server/internal/models"
	"blooddoc-api-server/internal/service"
)

type HospitalHandler struct {
	Hospitals *service.HospitalService
}

type CreateHospitalRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	City    string `json:"city"`
}

type UpdateHospitalRequest struct {
	Name    *string               `json:"name"`
	Address *string               `json:"address"`
	Phone   *string               `json:"phone"`
	Email   *string               `json:"email"`
	City    *string               `json:"city"`
	Beds    *[]models.Bed         `json:"beds"`
	Staff   *[]models.StaffMember `json:"staff"`
}

type InventoryRequest struct {
	BloodType  string  `json:"bloodType"`
	Units      *int    `json:"units"`
	ExpiryDate *string `json:"expiryDate"`
}

// CreateHospital creates the caller's hospital profile.
func (h *HospitalHandler) CreateHospital(c *gin.Context) {
	var req CreateHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	hospital, err := h.Hospitals.CreateProfile(c.Request.Context(), principal(c), service.CreateHospitalInput{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		City:    req.City,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hospital)
}

func (h *HospitalHandler) GetAllHospitals(c *gin.Context) {
	hospitals, err := h.Hospitals.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation("Invalid latitude or longitude format.")
	}
	return &v, nil
}

// SearchHospitals filters by bloodType and by proximity to lat/lng or a city.
func (h *HospitalHandler) SearchHospitals(c *gin.Context) {
	lat, err := queryFloat(c, "lat")
	if err != nil {
		respondError(c, err)
		return
	}
	lng, err := queryFloat(c, "lng")
	if err != nil {
		respondError(c, err)
		return
	}

	hospitals, err := h.Hospitals.Search(c.Request.Context(), service.SearchInput{
		BloodType: strings.TrimSpace(c.Query("bloodType")),
		Lat:       lat,
		Lng:       lng,
		City:      c.Query("city"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

func (h *HospitalHandler) GetHospitalByUser(c *gin.Context) {
	hospital, err := h.Hospitals.GetByOwner(c.Request.Context(), principal(c), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (h *HospitalHandler) GetHospitalByID(c *gin.Context) {
	hospital, err := h.Hospitals.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (h *HospitalHandler) UpdateHospital(c *gin.Context) {
	var req UpdateHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	hospital, err := h.Hospitals.UpdateProfile(c.Request.Context(), principal(c), c.Param("id"), service.UpdateHospitalInput{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		City:    req.City,
		Beds:    req.Beds,
		Staff:   req.Staff,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (h *HospitalHandler) DeleteHospital(c *gin.Context) {
	if err := h.Hospitals.DeleteProfile(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpsertInventory adds an entry or replaces the units of the existing one for that blood type.
func (h *HospitalHandler) UpsertInventory(c *gin.Context) {
	var req InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	entries, err := h.Hospitals.UpsertInventory(c.Request.Context(), principal(c), c.Param("id"), service.UpsertInventoryInput{
		BloodType:  req.BloodType,
		Units:      req.Units,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *HospitalHandler) UpdateInventoryEntry(c *gin.Context) {
	var req InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	entries, err := h.Hospitals.UpdateInventoryEntry(c.Request.Context(), principal(c), c.Param("id"), c.Param("entryId"), service.UpdateInventoryInput{
		Units:      req.Units,
		ExpiryDate: req.ExpiryDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *HospitalHandler) DeleteInventoryEntry(c *gin.Context) {
	if err := h.Hospitals.DeleteInventoryEntry(c.Request.Context(), principal(c), c.Param("id"), c.Param("entryId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportInventory streams the inventory as an XLSX attachment.
func (h *HospitalHandler) ExportInventory(c *gin.Context) {
	data, filename, err := h.Hospitals.ExportInventory(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, export.ContentType, data)
}
