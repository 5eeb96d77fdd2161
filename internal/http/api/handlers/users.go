package handlers

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"github.com/smartcitybq/traffic-admin/internal/mailer"
	"gorm.io/gorm"
)

// UserHandler manages user endpoints.
type UserHandler struct {
	db   *gorm.DB
	mail *mailer.Mailer
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, mail *mailer.Mailer) *UserHandler {
	return &UserHandler{db: db, mail: mail}
}

// listFilterFromQuery builds the shared list filter from query params.
func listFilterFromQuery(c *gin.Context) iam.ListFilter {
	filter := iam.ListFilter{Search: strings.TrimSpace(c.Query("search"))}
	if active, ok := queryBool(c, "active"); ok && active {
		filter.ActiveOnly = true
	}
	return filter
}

// List returns users matching the optional active and search filters.
func (h *UserHandler) List(c *gin.Context) {
	users, errList := iam.ListUsers(c.Request.Context(), h.db, listFilterFromQuery(c))
	if errList != nil {
		log.WithError(errList).Error("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, user := range users {
		out = append(out, userJSON(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListWithRoles returns users with their active role sets attached.
func (h *UserHandler) ListWithRoles(c *gin.Context) {
	users, errList := iam.ListUsersWithRoles(c.Request.Context(), h.db, listFilterFromQuery(c))
	if errList != nil {
		log.WithError(errList).Error("list users failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, entry := range users {
		row := userJSON(entry.User)
		roles := make([]gin.H, 0, len(entry.Roles))
		for _, role := range entry.Roles {
			roles = append(roles, roleJSON(role))
		}
		row["roles"] = roles
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns one user with roles by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	entry, errFind := iam.GetUserWithRoles(c.Request.Context(), h.db, id)
	if errFind != nil {
		if errors.Is(errFind, iam.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	row := userJSON(entry.User)
	roles := make([]gin.H, 0, len(entry.Roles))
	for _, role := range entry.Roles {
		roles = append(roles, roleJSON(role))
	}
	row["roles"] = roles
	c.JSON(http.StatusOK, row)
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Identification string    `json:"identification"`
	Active         *bool     `json:"active"`
	RoleIDs        *[]uint64 `json:"role_ids"`
}

// Create creates a user, assigns roles, and sends the welcome email.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Identification) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email, name, or identification"})
		return
	}

	user, errCreate := iam.CreateUser(c.Request.Context(), h.db, iam.CreateUserInput{
		Email:          body.Email,
		Name:           strings.TrimSpace(body.Name),
		Identification: strings.TrimSpace(body.Identification),
		Active:         body.Active,
		RoleIDs:        body.RoleIDs,
	})
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, iam.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role id"})
		case errors.Is(errCreate, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "email or identification already in use"})
		default:
			log.WithError(errCreate).Error("create user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		}
		return
	}

	if h.mail != nil && h.mail.Enabled() && user.PasswordResetToken != nil {
		h.mail.SendWelcome(user.Email, user.Name, *user.PasswordResetToken)
	}
	c.JSON(http.StatusCreated, userJSON(*user))
}

// updateUserRequest defines the request body for user updates. Nil
// role_ids leaves assignments untouched, an empty list clears them.
type updateUserRequest struct {
	Email          *string   `json:"email"`
	Name           *string   `json:"name"`
	Identification *string   `json:"identification"`
	Active         *bool     `json:"active"`
	RoleIDs        *[]uint64 `json:"role_ids"`
}

// Update modifies a user and synchronizes its role assignments.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errUpdate := iam.UpdateUser(c.Request.Context(), h.db, id, iam.UpdateUserInput{
		Email:          body.Email,
		Name:           body.Name,
		Identification: body.Identification,
		Active:         body.Active,
		RoleIDs:        body.RoleIDs,
	})
	if errUpdate != nil {
		switch {
		case errors.Is(errUpdate, iam.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errUpdate, iam.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role id"})
		case errors.Is(errUpdate, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "email or identification already in use"})
		default:
			log.WithError(errUpdate).Error("update user failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		}
		return
	}
	c.JSON(http.StatusOK, userJSON(*user))
}

// Delete deactivates a user. Role assignment history is preserved.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errDelete := iam.DeactivateUser(c.Request.Context(), h.db, id); errDelete != nil {
		if errors.Is(errDelete, iam.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errDelete).Error("delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetPassword rotates the user's reset token and emails the link.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	user, token, errReset := iam.ResetPasswordToken(c.Request.Context(), h.db, id)
	if errReset != nil {
		if errors.Is(errReset, iam.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errReset).Error("reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	if h.mail != nil && h.mail.Enabled() {
		h.mail.SendPasswordReset(user.Email, user.Name, token)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
