// server/internal/api/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/api/middleware"
	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
)

// respondError writes err as {"error": ...}. Upstream failures also carry "details".
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Server error", err)
	}

	body := gin.H{"error": appErr.Message}
	switch appErr.Kind {
	case apperr.KindUpstream:
		if appErr.Err != nil {
			body["details"] = appErr.Err.Error()
		}
		log.Error().Err(appErr.Err).Str("path", c.FullPath()).Msg(appErr.Message)
	case apperr.KindInternal:
		log.Error().Err(appErr.Err).Str("path", c.FullPath()).Msg(appErr.Message)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.Status(), body)
}

func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// principal returns the authenticated caller. Routes using it sit behind Authenticate.
func principal(c *gin.Context) auth.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}
