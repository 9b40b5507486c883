package repository

import (
	"context"
	"encoding/json"

	"github.com/cns-studios/auth-service/internal/model"
)

// UserRepository is the contract the credential store implements.
//
// The service layer programs against this interface, never against
// *sqlite.DB directly — tests inject an in-memory mock, and the storage
// backend can change without touching business logic.
type UserRepository interface {
	// Create inserts a new user with the given bcrypt hash and a freshly
	// seeded document. Returns apperror.ErrConflict if the username is
	// already taken by ANY record, active or not — deactivated accounts
	// keep their name reserved.
	Create(ctx context.Context, username, pinHash string) (int64, error)

	// FindActiveByUsername returns the user only if is_active is set.
	// Deactivated users are indistinguishable from nonexistent ones.
	FindActiveByUsername(ctx context.Context, username string) (*model.User, error)

	// RecordLogin stamps last_login_at/last_login_ip. Last write wins;
	// never fails for a valid existing id.
	RecordLogin(ctx context.Context, userID int64, source string) error

	// GetUserData returns identity plus the full document (profile and all
	// service slices) for the given user.
	GetUserData(ctx context.Context, userID int64) (*model.UserData, error)

	// GetServiceSlice returns the raw JSON stored under the named service
	// key, or apperror.ErrNotFound if the user doesn't exist or the key
	// was never written.
	GetServiceSlice(ctx context.Context, userID int64, service string) (json.RawMessage, error)

	// PutServiceSlice REPLACES the named key wholesale — no deep merge.
	// Callers that want partial updates must read, modify, and write back.
	// The read-modify-write of the enclosing document runs inside a write
	// transaction so concurrent writes to different service names for the
	// same user both survive.
	PutServiceSlice(ctx context.Context, userID int64, service string, value json.RawMessage) error
}
