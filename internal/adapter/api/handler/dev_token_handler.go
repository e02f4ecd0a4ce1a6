package handler

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/domain/entity"
	"supportdesk/internal/infrastructure/firebase"
	"supportdesk/pkg/response"
)

type DevTokenHandler struct {
	authClient *firebase.AuthClient
}

func NewDevTokenHandler(authClient *firebase.AuthClient) *DevTokenHandler {
	return &DevTokenHandler{
		authClient: authClient,
	}
}

type devTokenRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=customer driver vendor fleet_manager admin superadmin"`
}

// GenerateToken mints a development bearer token for the given identity.
func (h *DevTokenHandler) GenerateToken(c echo.Context) error {
	var req devTokenRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	token, err := h.authClient.GenerateDevToken(req.UserID, req.Role)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"token": token,
		"identity": entity.Identity{
			ID:   req.UserID,
			Role: req.Role,
		},
	})
}
