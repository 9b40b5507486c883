package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cns-studios/auth-service/internal/model"
	"github.com/cns-studios/auth-service/internal/repository"
)

// UserDataService is the business layer behind /api/me and /api/data.
//
// Every subordinate property persists its state under its own service-name
// key in the user's document; this service mediates those reads and writes
// so no property can touch another's slice. The service name is a pure map
// key — it is never interpreted as a path, a query fragment, or code.
type UserDataService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUserDataService creates a UserDataService.
func NewUserDataService(users repository.UserRepository, logger *slog.Logger) *UserDataService {
	return &UserDataService{
		users:  users,
		logger: logger,
	}
}

// Me returns the full document (profile plus all service slices) for the
// authenticated user. apperror.ErrNotFound if the user row is gone (e.g. a
// token outliving a deactivated account).
func (s *UserDataService) Me(ctx context.Context, userID int64) (*model.UserData, error) {
	data, err := s.users.GetUserData(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/userdata: fetching user %d: %w", userID, err)
	}
	return data, nil
}

// GetServiceData returns the named service's stored slice, verbatim.
func (s *UserDataService) GetServiceData(ctx context.Context, userID int64, service string) (json.RawMessage, error) {
	value, err := s.users.GetServiceSlice(ctx, userID, service)
	if err != nil {
		return nil, fmt.Errorf("service/userdata: reading %q slice for user %d: %w", service, userID, err)
	}
	return value, nil
}

// PutServiceData REPLACES the named service's slice with value. There is no
// merge: a property that wants a partial update must read its slice, modify
// it, and write the whole thing back.
func (s *UserDataService) PutServiceData(ctx context.Context, userID int64, service string, value json.RawMessage) error {
	if err := s.users.PutServiceSlice(ctx, userID, service, value); err != nil {
		return fmt.Errorf("service/userdata: writing %q slice for user %d: %w", service, userID, err)
	}

	s.logger.Debug("service data updated",
		slog.Int64("userID", userID),
		slog.String("service", service),
		slog.Int("bytes", len(value)),
	)

	return nil
}
