package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blooddoc-api-server/internal/service"
)

type AuthHandler struct {
	Accounts *service.AccountService
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"required"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// Register creates an account, plus a hospital profile for hospital accounts.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.Accounts.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Address:  req.Address,
		Phone:    req.Phone,
		City:     req.City,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.Accounts.Login(c.Request.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
