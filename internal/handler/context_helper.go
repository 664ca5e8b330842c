package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/middleware"
	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext writes a 401 and returns false when the request is unauthenticated.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return models.ActorFromClaims(claims), true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
