package auth

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"auth-serverless/internal/observability"
)

const (
	maxJSONBodyBytes  = 1 << 20
	maxIdentifierLen  = 255
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	JTI    string `json:"jti"`
}

// Login accepts a JSON body or an OAuth2 password grant form.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	body, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	identifier := strings.TrimSpace(body.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(body.Username)
	}
	if identifier == "" || len(identifier) > maxIdentifierLen {
		writeError(w, http.StatusBadRequest, "identifier format is invalid")
		return
	}
	if body.Password == "" || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	tokens, err := h.service.Login(r.Context(), identifier, body.Password)
	if err != nil {
		var lockedErr ErrAccountLocked
		if errors.As(err, &lockedErr) {
			h.logger.Warn("account_locked", map[string]any{"until": lockedErr.Until.Format(time.RFC3339)})
		}
		h.writeAuthError(w, err, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenRevoked) {
			h.logger.Warn("refresh_token_replay", map[string]any{"ip": r.RemoteAddr})
		}
		h.writeAuthError(w, err, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body logoutRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid refresh token")
		return
	}

	accessToken, _ := bearerToken(r)
	if err := h.service.Logout(r.Context(), body.RefreshToken, accessToken); err != nil {
		h.writeAuthError(w, err, "failed to logout")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	userID, _ := claims.SubjectID()
	writeJSON(w, http.StatusOK, meResponse{UserID: userID, Role: claims.Role, JTI: claims.ID})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error, fallback string) {
	var lockedErr ErrAccountLocked
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.As(err, &lockedErr):
		retryAfter := int(time.Until(lockedErr.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusForbidden, "account is temporarily locked")
	case errors.Is(err, ErrRefreshTokenRevoked):
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
	case errors.Is(err, ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, "refresh token expired")
	case errors.Is(err, ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, ErrInvalidAccessToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	default:
		sentry.CaptureException(err)
		h.logger.Error("auth_request_failed", map[string]any{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form body")
			return loginRequest{}, false
		}
		return loginRequest{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, true
	}

	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return loginRequest{}, false
	}
	return body, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
