package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filevault/internal/infrastructure/jwt"
	"filevault/internal/interface/api/rest/dto/profile"
	"filevault/internal/interface/api/rest/middleware"
)

type ProfileController struct {
	logger *zap.Logger
}

func NewProfileController(
	r *gin.Engine,
	logger *zap.Logger,
	jwtService *jwt.Service,
) *ProfileController {
	pc := &ProfileController{
		logger: logger,
	}

	r.GET(RouteProfile, middleware.AuthMiddleware(jwtService), pc.GetProfileHandler)

	return pc
}

// GetProfileHandler returns the claims the middleware decoded; the token
// was already verified by the time we get here.
func (pc *ProfileController) GetProfileHandler(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserID)
	email := c.GetString(middleware.CtxUserEmail)
	name := c.GetString(middleware.CtxUserName)

	c.JSON(http.StatusOK, profile.ToResponseProfile(uid, email, name))
}
