package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/config"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"github.com/smartcitybq/traffic-admin/internal/ratelimit"
	"github.com/smartcitybq/traffic-admin/internal/security"
	"gorm.io/gorm"
)

// minPasswordLength is the shortest password accepted on change.
const minPasswordLength = 8

// AuthHandler manages login and password change endpoints.
type AuthHandler struct {
	db      *gorm.DB
	jwtCfg  config.JWTConfig
	google  *security.GoogleVerifier
	limiter *ratelimit.Manager
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig, google *security.GoogleVerifier, limiter *ratelimit.Manager) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, google: google, limiter: limiter}
}

// loginRequest defines the request body for password login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and issues a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email or password"})
		return
	}

	if !h.allowAttempt(c, email) {
		return
	}

	user, errFind := iam.GetUserByEmail(c.Request.Context(), h.db, email)
	if errFind != nil {
		if errors.Is(errFind, iam.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if user.MustChangePassword || user.Password == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "password change required", "must_change_password": true})
		return
	}
	if !security.VerifyPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.issueToken(c, user.Email)
}

// googleLoginRequest defines the request body for Google login.
type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

// LoginGoogle authenticates with a Google ID token. The account must
// already exist; no user is provisioned on first sign-in.
func (h *AuthHandler) LoginGoogle(c *gin.Context) {
	var body googleLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing id_token"})
		return
	}
	if h.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "google login not configured"})
		return
	}

	info, errVerify := h.google.Verify(c.Request.Context(), body.IDToken)
	if errVerify != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid google token"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))

	if !h.allowAttempt(c, email) {
		return
	}

	user, errFind := iam.GetUserByEmail(c.Request.Context(), h.db, email)
	if errFind != nil {
		if errors.Is(errFind, iam.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no account for this email"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no account for this email"})
		return
	}

	h.issueToken(c, user.Email)
}

// changePasswordRequest defines the request body for the reset flow.
type changePasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ChangePassword consumes a single-use reset token, stores the new
// password, and issues a session token.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var body changePasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	if len(body.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password too short"})
		return
	}

	user, errConsume := iam.ConsumeResetToken(c.Request.Context(), h.db, strings.TrimSpace(body.Token), body.Password)
	if errConsume != nil {
		if errors.Is(errConsume, iam.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		log.WithError(errConsume).Error("change password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "change password failed"})
		return
	}

	h.issueToken(c, user.Email)
}

// Me returns the calling user with roles and granted modules.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetUint64("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	user, errFind := iam.GetUserWithRoles(c.Request.Context(), h.db, userID)
	if errFind != nil {
		if errors.Is(errFind, iam.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	modules, errModules := iam.UserModules(c.Request.Context(), h.db, userID)
	if errModules != nil {
		log.WithError(errModules).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	roles := make([]gin.H, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, roleJSON(role))
	}
	moduleList := make([]gin.H, 0, len(modules))
	for _, mod := range modules {
		moduleList = append(moduleList, moduleJSON(mod))
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    userJSON(user.User),
		"roles":   roles,
		"modules": moduleList,
	})
}

// allowAttempt enforces the login rate limit. It writes the 429
// response itself and reports whether the attempt may proceed.
func (h *AuthHandler) allowAttempt(c *gin.Context, email string) bool {
	if h.limiter == nil {
		return true
	}
	res, errLimit := h.limiter.AllowLogin(c.Request.Context(), ratelimit.LoginKey(c.ClientIP(), email))
	if errLimit != nil {
		// Limiter failure must not lock everyone out.
		return true
	}
	if !res.Allowed {
		retryAfter := int(time.Until(res.Reset).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return false
	}
	return true
}

// issueToken writes the session token response.
func (h *AuthHandler) issueToken(c *gin.Context, email string) {
	token, errToken := security.CreateSessionToken(h.jwtCfg.Secret, email, h.jwtCfg.Expiry)
	if errToken != nil {
		log.WithError(errToken).Error("token issue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(h.jwtCfg.Expiry.Seconds()),
	})
}
