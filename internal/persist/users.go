package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/lower-elements/example-web-game/internal/userdir"
)

// bcryptCost matches what the accounts table was seeded with; changing it only
// affects newly inserted rows.
const bcryptCost = 12

// UserRepo implements userdir.Directory over the users table.
type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindByEmailAndPassword authenticates a login attempt. A missing account and
// a wrong password are indistinguishable to the caller: both return nil, nil.
func (r *UserRepo) FindByEmailAndPassword(ctx context.Context, email, password string) (*userdir.Account, error) {
	var (
		acc  userdir.Account
		hash string
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, username, normalized_username, password_hash, profile
		 FROM users WHERE email = $1`, userdir.Normalize(email),
	).Scan(&acc.ID, &acc.Email, &acc.Username, &acc.NormalizedUsername, &hash, &acc.Profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %q: %w", email, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil
	}
	return &acc, nil
}

// ReplaceByEmail writes back the mutable profile fields of an account.
func (r *UserRepo) ReplaceByEmail(ctx context.Context, email string, acc *userdir.Account) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET username = $2, normalized_username = $3, profile = $4
		 WHERE email = $1`,
		userdir.Normalize(email), acc.Username, userdir.Normalize(acc.Username), acc.Profile,
	)
	if err != nil {
		return false, fmt.Errorf("replacing user %q: %w", email, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Insert registers a new account, hashing the password before storage.
func (r *UserRepo) Insert(ctx context.Context, email, username, password string) (*userdir.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	acc := &userdir.Account{
		Email:              userdir.Normalize(email),
		Username:           username,
		NormalizedUsername: userdir.Normalize(username),
		Profile:            map[string]string{},
	}
	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (email, username, normalized_username, password_hash, profile)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		acc.Email, acc.Username, acc.NormalizedUsername, string(hash), acc.Profile,
	).Scan(&acc.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, userdir.ErrDuplicate
		}
		return nil, fmt.Errorf("inserting user %q: %w", email, err)
	}
	return acc, nil
}
