// Package auth issues presenter tokens. The live core consumes identity
// only as opaque strings; this module is the narrow provider behind that
// boundary.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slidecast/core/internal/config"
	"github.com/slidecast/core/internal/middleware"
	"github.com/slidecast/core/internal/models"
	"github.com/slidecast/core/internal/pkg/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 12 * time.Hour

type loginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Service handles presenter login.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}

// EnsureSeedUser creates the configured presenter account when the users
// table is empty. Without a seed password no account is created.
func (s *Service) EnsureSeedUser(cfg *config.AppConfig) error {
	var count int64
	if err := s.db.Model(&models.UserModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 || cfg.Seed.Password == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := models.UserModel{
		Username:     cfg.Seed.Username,
		Name:         cfg.Seed.Username,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&user).Error; err != nil {
		return err
	}
	s.logger.Info("seed presenter account created", zap.String("username", user.Username))
	return nil
}

// Login verifies credentials and returns a signed teacher token.
func (s *Service) Login(username, password string) (string, error) {
	var user models.UserModel
	if err := s.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.New("invalid credentials")
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	return jwt.Sign(user.ID, middleware.RoleTeacher, tokenTTL)
}

// RegisterRoutes mounts the auth endpoints.
func RegisterRoutes(rg *gin.RouterGroup, svc *Service) {
	rg.POST("/auth/login", func(c *gin.Context) {
		var dto loginDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
			return
		}
		token, err := svc.Login(dto.Username, dto.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})
}
