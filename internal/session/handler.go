// File: internal/session/handler.go
package session

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"redsocial_backend/internal/common"
	"redsocial_backend/internal/identity"
	"redsocial_backend/internal/oauth"
	"redsocial_backend/internal/profile"
)

// Handler exposes the session controller operations over HTTP.
type Handler struct {
	controller *Controller
	logger     *zap.Logger
}

// NewHandler creates a new session handler.
func NewHandler(controller *Controller, logger *zap.Logger) *Handler {
	return &Handler{
		controller: controller,
		logger:     logger,
	}
}

// RegisterRoutes sets up the routes for session operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.login)
		authGroup.POST("/register", h.register)
		authGroup.POST("/google", h.googleLogin)
		authGroup.POST("/guest", h.guestLogin)
		authGroup.POST("/password-reset", h.passwordReset)
		authGroup.POST("/logout", h.logout)
		authGroup.GET("/github/login", h.githubLogin)
		authGroup.GET("/github/callback", h.githubCallback)
		authGroup.PUT("/intereses", h.saveIntereses)
		authGroup.GET("/state", h.state)
		authGroup.DELETE("/message", h.clearMessage)
	}
}

// --- Request DTOs ---

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	NombreCompleto  string `json:"nombre_completo" binding:"required"`
	NombreUsuario   string `json:"nombre_usuario" binding:"required"`
	FechaNacimiento string `json:"fecha_nacimiento"`
	Genero          string `json:"genero"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type interesesRequest struct {
	Intereses []string `json:"intereses" binding:"required"`
}

// stateResponse is the state snapshot returned by every operation.
type stateResponse struct {
	Status    string             `json:"status"`
	Principal *principalResponse `json:"principal,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type principalResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

func (h *Handler) snapshot() stateResponse {
	state := h.controller.State()
	resp := stateResponse{
		Status:  string(state.Status),
		Message: h.controller.Message(),
	}
	if state.Principal != nil {
		resp.Principal = &principalResponse{
			ID:          state.Principal.ID,
			Email:       state.Principal.Email,
			DisplayName: state.Principal.DisplayName,
			PhotoURL:    state.Principal.PhotoURL,
		}
	}
	return resp
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.controller.LoginWithEmail(c.Request.Context(), req.Email, req.Password); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Login processed.", h.snapshot())
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.controller.RegisterWithEmail(c.Request.Context(), RegistrationInput{
		Email:           req.Email,
		Password:        req.Password,
		NombreCompleto:  req.NombreCompleto,
		NombreUsuario:   req.NombreUsuario,
		FechaNacimiento: req.FechaNacimiento,
		Genero:          req.Genero,
	})
	if err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondCreated(c, "Registration completed.", h.snapshot())
}

func (h *Handler) googleLogin(c *gin.Context) {
	var req googleLoginRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.controller.LoginWithGoogle(c.Request.Context(), req.IDToken); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Login processed.", h.snapshot())
}

func (h *Handler) guestLogin(c *gin.Context) {
	if err := h.controller.LoginAsGuest(c.Request.Context()); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Guest session started.", h.snapshot())
}

func (h *Handler) passwordReset(c *gin.Context) {
	var req passwordResetRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.controller.ResetPassword(c.Request.Context(), req.Email); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Password reset email sent.", h.snapshot())
}

func (h *Handler) logout(c *gin.Context) {
	h.controller.SignOut(c.Request.Context())
	common.RespondOK(c, "Signed out.", h.snapshot())
}

func (h *Handler) githubLogin(c *gin.Context) {
	state := uuid.NewString()
	authURL := h.controller.GitHubAuthURL(state)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

func (h *Handler) githubCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Missing authorization code."))
		return
	}

	if err := h.controller.HandleGitHubCallback(c.Request.Context(), code); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Login processed.", h.snapshot())
}

func (h *Handler) saveIntereses(c *gin.Context) {
	var req interesesRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.controller.SaveIntereses(c.Request.Context(), req.Intereses); err != nil {
		common.RespondWithError(c, mapSessionError(err))
		return
	}
	common.RespondOK(c, "Interests saved.", h.snapshot())
}

func (h *Handler) state(c *gin.Context) {
	common.RespondOK(c, "", h.snapshot())
}

func (h *Handler) clearMessage(c *gin.Context) {
	h.controller.ClearMessage()
	common.RespondNoContent(c)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", c.Request.URL.Path), zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return false
	}
	return true
}

// mapSessionError translates domain errors to API errors for the HTTP
// surface.
func mapSessionError(err error) error {
	if _, ok := common.IsAPIError(err); ok {
		return err
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return common.NewValidationAPIError(map[string]string{valErr.Field: valErr.Reason})
	}

	var exchErr *oauth.ExchangeError
	if errors.As(err, &exchErr) {
		return common.ErrServiceUnavailable.WithDetails("OAuth token exchange failed.")
	}

	var provErr *profile.ProvisionError
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case profile.ProvisionPermission:
			return common.ErrForbidden.WithDetails("Profile store rejected the operation.")
		case profile.ProvisionOffline:
			return common.ErrServiceUnavailable.WithDetails("Profile store unreachable.")
		default:
			return common.ErrInternalServer.WithDetails("Profile provisioning failed.")
		}
	}

	var idErr *identity.Error
	if errors.As(err, &idErr) {
		switch idErr.Code {
		case identity.CodeInvalidCredential, identity.CodeUserNotFound, identity.CodeUserDisabled:
			return common.ErrUnauthorized.WithDetails("Invalid credentials.")
		case identity.CodeEmailInUse:
			return common.ErrConflict.WithDetails("This email is already registered.")
		case identity.CodeInvalidEmail, identity.CodeWeakPassword:
			return common.ErrUnprocessableEntity.WithDetails(idErr.Detail)
		case identity.CodeNetwork:
			return common.ErrServiceUnavailable.WithDetails("Identity provider unreachable.")
		case identity.CodeTooManyRequests:
			return common.NewAPIError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many attempts, try again later.")
		default:
			return common.ErrInternalServer.WithDetails("Authentication failed.")
		}
	}

	return err
}
