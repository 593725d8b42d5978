package users

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates an empty creator identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies required for the creator registry.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service maintains the registry of creators seen by the token exchange.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the registry service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// Touch records that the creator was seen, creating the identity on first
// contact and refreshing last_seen_at (and an improved display name)
// afterwards. Returns the canonical user id. Refresh failures are logged and
// swallowed: the registry is best-effort and never blocks a token exchange.
func (s *Service) Touch(userID, displayName string) (string, error) {
	userID = normalize(userID)
	if userID == "" {
		return "", ErrInvalidIdentity
	}
	displayName = normalize(displayName)

	if _, ok := s.cache.Load(userID); ok && displayName == "" {
		if err := s.db.Model(&Identity{}).
			Where("user_id = ?", userID).
			Update("last_seen_at", s.now()).Error; err != nil {
			s.logRefreshFailure(userID, err)
		}
		return userID, nil
	}

	var identity Identity
	err := s.db.Where("user_id = ?", userID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			UserID:      userID,
			DisplayName: displayName,
			LastSeenAt:  s.now(),
		}
		if err := s.db.Create(&identity).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if displayName != "" && displayName != identity.DisplayName {
			updates["display_name"] = displayName
		}
		if err := s.db.Model(&Identity{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; err != nil {
			s.logRefreshFailure(userID, err)
		}
	}

	s.cache.Store(userID, struct{}{})
	return userID, nil
}

func (s *Service) logRefreshFailure(userID string, err error) {
	s.logger.Debug("creator registry refresh failed",
		zap.String("user_id", userID),
		zap.Error(err))
}
