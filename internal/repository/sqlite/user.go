package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cns-studios/auth-service/internal/apperror"
	"github.com/cns-studios/auth-service/internal/model"
	"github.com/cns-studios/auth-service/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user with a freshly seeded document.
//
// Uniqueness is checked against ALL rows, active or not — a deactivated
// account keeps its username reserved so it can never be silently replaced
// by a new signup. The check and the insert run in one transaction so two
// concurrent signups for the same name can't both pass the check.
func (db *DB) Create(ctx context.Context, username, pinHash string) (int64, error) {
	now := time.Now().UTC()

	doc, err := json.Marshal(model.NewDocument(username, now))
	if err != nil {
		return 0, fmt.Errorf("sqlite: marshaling seed document: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking username %q: %w", username, err)
	}
	if exists > 0 {
		return 0, apperror.Conflict("Username already taken")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, pin_hash, user_data, created_at, is_active)
		 VALUES (?, ?, ?, ?, 1)`,
		username, pinHash, string(doc), now,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: inserting user %q: %w", username, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading new user id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing create: %w", err)
	}

	return id, nil
}

// FindActiveByUsername returns the user only if is_active = 1.
// Deactivated accounts are treated as nonexistent.
func (db *DB) FindActiveByUsername(ctx context.Context, username string) (*model.User, error) {
	var (
		u         model.User
		rawDoc    string
		lastLogin sql.NullTime
		active    int
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, pin_hash, user_data, created_at, last_login_at, last_login_ip, is_active
		 FROM users WHERE username = ? AND is_active = 1`,
		username,
	).Scan(
		&u.ID,
		&u.Username,
		&u.PINHash,
		&rawDoc,
		&u.CreatedAt,
		&lastLogin,
		&u.LastLoginIP,
		&active,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("sqlite: finding user %q: %w", username, err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	u.Active = active == 1

	if err := json.Unmarshal([]byte(rawDoc), &u.Document); err != nil {
		return nil, fmt.Errorf("sqlite: decoding document for user %d: %w", u.ID, err)
	}

	return &u, nil
}

// RecordLogin stamps the login timestamp and source address. Last write wins.
func (db *DB) RecordLogin(ctx context.Context, userID int64, source string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, last_login_ip = ? WHERE id = ?`,
		time.Now().UTC(), source, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording login for user %d: %w", userID, err)
	}
	return nil
}

// GetUserData returns identity plus the decoded document for /api/me.
func (db *DB) GetUserData(ctx context.Context, userID int64) (*model.UserData, error) {
	var (
		id       int64
		username string
		rawDoc   string
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, user_data FROM users WHERE id = ?`, userID,
	).Scan(&id, &username, &rawDoc)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", userID, err)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(rawDoc), &doc); err != nil {
		return nil, fmt.Errorf("sqlite: decoding document for user %d: %w", userID, err)
	}
	if doc.Services == nil {
		doc.Services = map[string]json.RawMessage{}
	}

	return &model.UserData{
		UserID:   id,
		Username: username,
		Profile:  doc.Profile,
		Services: doc.Services,
	}, nil
}

// GetServiceSlice returns the raw JSON stored under one service key.
//
// The service name is used purely as a map key into the decoded document —
// it is never part of a path or a SQL fragment, so there is no traversal to
// defend against.
func (db *DB) GetServiceSlice(ctx context.Context, userID int64, service string) (json.RawMessage, error) {
	data, err := db.GetUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	value, ok := data.Services[service]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("No data found for service: %s", service))
	}
	return value, nil
}

// PutServiceSlice replaces the named service key wholesale.
//
// The whole document is read, the one key swapped, and the document written
// back — all under docMu plus a transaction, so two concurrent writes to
// DIFFERENT service names for the same user are serialized instead of the
// second clobbering the first's key (lost update).
func (db *DB) PutServiceSlice(ctx context.Context, userID int64, service string, value json.RawMessage) error {
	db.docMu.Lock()
	defer db.docMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning document transaction: %w", err)
	}
	defer tx.Rollback()

	var rawDoc string
	err = tx.QueryRowContext(ctx,
		`SELECT user_data FROM users WHERE id = ?`, userID,
	).Scan(&rawDoc)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("User not found")
		}
		return fmt.Errorf("sqlite: reading document for user %d: %w", userID, err)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(rawDoc), &doc); err != nil {
		return fmt.Errorf("sqlite: decoding document for user %d: %w", userID, err)
	}
	if doc.Services == nil {
		doc.Services = map[string]json.RawMessage{}
	}

	doc.Services[service] = value

	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlite: encoding document for user %d: %w", userID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET user_data = ? WHERE id = ?`, string(updated), userID,
	); err != nil {
		return fmt.Errorf("sqlite: writing document for user %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing document for user %d: %w", userID, err)
	}

	return nil
}

// Deactivate soft-deletes a user. The row (and its username reservation)
// stays; lookups and logins treat the account as gone.
func (db *DB) Deactivate(ctx context.Context, userID int64) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_active = 0 WHERE id = ?`, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deactivating user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deactivating user %d: %w", userID, err)
	}
	if n == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}
