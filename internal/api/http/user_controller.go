package http

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/confroom/internal/config"
	"github.com/immxrtalbeast/confroom/internal/repository"
	"github.com/immxrtalbeast/confroom/internal/service"
)

var avatarExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

type UserController struct {
	users   service.UserInteractor
	uploads config.UploadsConfig
}

func NewUserController(users service.UserInteractor, uploads config.UploadsConfig) *UserController {
	return &UserController{users: users, uploads: uploads}
}

func (c *UserController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required,max=64"`
		Password string `json:"password" binding:"required,min=6,max=72"`
		Name     string `json:"name" binding:"max=64"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	user, token, err := c.users.Register(ctx.Request.Context(), req.Username, req.Password, req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			status = http.StatusConflict
		case errors.Is(err, service.ErrInvalidUser):
			status = http.StatusBadRequest
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

func (c *UserController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := c.users.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (c *UserController) GetUser(ctx *gin.Context) {
	id, err := uuid.Parse(ctx.Param("userID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *UserController) Me(ctx *gin.Context) {
	id, ok := c.currentUserID(ctx)
	if !ok {
		return
	}

	user, err := c.users.GetUser(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *UserController) UpdateMe(ctx *gin.Context) {
	type request struct {
		Name  string  `json:"name" binding:"max=64"`
		Phone *string `json:"phone" binding:"omitempty,max=32"`
	}

	id, ok := c.currentUserID(ctx)
	if !ok {
		return
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := c.users.UpdateProfile(ctx.Request.Context(), id, req.Name, req.Phone)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

// UploadAvatar stores the multipart "avatar" file under the uploads
// directory and points the caller's profile at it.
func (c *UserController) UploadAvatar(ctx *gin.Context) {
	if c.uploads.Dir == "" || c.uploads.URLPrefix == "" {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "avatar uploads are disabled"})
		return
	}

	id, ok := c.currentUserID(ctx)
	if !ok {
		return
	}

	file, err := ctx.FormFile("avatar")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if c.uploads.MaxAvatarSize > 0 && file.Size > c.uploads.MaxAvatarSize {
		ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar file is too large"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := avatarExtensions[ext]; !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "unsupported avatar format"})
		return
	}

	name := fmt.Sprintf("%s-%d%s", id, time.Now().UnixNano(), ext)
	if err := ctx.SaveUploadedFile(file, filepath.Join(c.uploads.Dir, name)); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
		return
	}

	user, err := c.users.SetAvatar(ctx.Request.Context(), id, path.Join(c.uploads.URLPrefix, name))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": user})
}

func (c *UserController) currentUserID(ctx *gin.Context) (uuid.UUID, bool) {
	identity, ok := identityFrom(ctx)
	if !ok || identity.IsGuest {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "guest sessions have no profile"})
		return uuid.Nil, false
	}

	id, err := uuid.Parse(identity.UserID)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id in token"})
		return uuid.Nil, false
	}
	return id, true
}
