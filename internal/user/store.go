// Package user holds the admin account model for the management surface.
// Selene is a single-tenant tool; accounts exist solely to guard the admin
// routes, so there is no role or permission model attached to them.
package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hbomb79/Selene/internal/database"
)

var ErrUserNotFound = errors.New("user does not exist")

type (
	User struct {
		ID             uuid.UUID  `db:"id"`
		Username       string     `db:"username"`
		HashedPassword []byte     `db:"password" json:"-"`
		HashSalt       []byte     `db:"salt" json:"-"`
		CreatedAt      time.Time  `db:"created_at"`
		UpdatedAt      time.Time  `db:"updated_at"`
		LastLoginAt    *time.Time `db:"last_login"`
	}

	Store struct {
		hasher *argonHasher
	}
)

func NewStore() *Store {
	return &Store{
		newArgon2IdHasher(1, 64, 64*1024, 1, 128),
	}
}

func (store *Store) Create(db database.Queryable, username []byte, rawPassword []byte) error {
	hash, err := store.hasher.GenerateHash(rawPassword, []byte{})
	if err != nil {
		return fmt.Errorf("provided password is invalid: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO users(id, username, password, salt, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, current_timestamp, current_timestamp, NULL)
	`, uuid.New(), username, hash.hash, hash.salt)
	if err != nil {
		return fmt.Errorf("failed to insert new user: %w", err)
	}

	return nil
}

// GetWithUsernameAndPassword finds a user with the matching
// username and returns it IF and ONLY IF the raw (unhashed) password
// provided is able to be hashed with the same salt as was used with
// the existing user (if any), and the hashes MATCH.
func (store *Store) GetWithUsernameAndPassword(db database.Queryable, username []byte, rawPassword []byte) (*User, error) {
	query, args, err := selectUserBuilder().Where("users.username=?", username).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select user query: %w", err)
	}

	var user User
	if err := db.Get(&user, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find user with username %s: %w", username, err)
	}

	if err := store.hasher.Compare(user.HashedPassword, user.HashSalt, rawPassword); err != nil {
		return nil, fmt.Errorf("password supplied for user %s is invalid: %v", username, err)
	}

	return &user, nil
}

func (store *Store) GetWithID(db database.Queryable, id uuid.UUID) (*User, error) {
	query, args, err := selectUserBuilder().Where("users.id=?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select user query: %w", err)
	}

	var user User
	if err := db.Get(&user, db.Rebind(query), args...); err != nil {
		return nil, ErrUserNotFound
	}

	return &user, nil
}

// UpdateCredentials rehashes the new password with a fresh salt and replaces
// the username/password of the user provided in a single statement.
func (store *Store) UpdateCredentials(db database.Queryable, userID uuid.UUID, username []byte, rawPassword []byte) error {
	hash, err := store.hasher.GenerateHash(rawPassword, []byte{})
	if err != nil {
		return fmt.Errorf("provided password is invalid: %w", err)
	}

	_, err = db.Exec(`
		UPDATE users SET username=$1, password=$2, salt=$3, updated_at=current_timestamp WHERE id=$4
	`, username, hash.hash, hash.salt, userID)
	if err != nil {
		return fmt.Errorf("failed to update user credentials: %w", err)
	}

	return nil
}

func (store *Store) Count(db database.Queryable) (int, error) {
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}

	return count, nil
}

func (store *Store) RecordLogin(db database.Queryable, userID uuid.UUID) error {
	_, err := db.Exec(`UPDATE users SET last_login=current_timestamp WHERE id = $1`, userID)
	return err
}

func selectUserBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("users.*").
		From("users")
}
