// Package identity holds accounts and their one-to-one role profiles.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/validate"
)

type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAccount is the registration form.
type NewAccount struct {
	Username        string `json:"username" validate:"notblank,max=150"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

var (
	ErrPasswordMismatch   = apperr.Invalid("Passwords do not match.").WithCode("password_mismatch")
	ErrUsernameTaken      = apperr.Duplicate("A user with that username already exists.")
	ErrInvalidCredentials = apperr.Denied("Invalid username or password.").WithCode("invalid_credentials")
	ErrRoleMismatch       = apperr.Denied("Invalid user type selected.").WithCode("role_mismatch")
	ErrAccountNotFound    = apperr.Missing("User profile not found.")
)

type Store struct {
	db   *sql.DB
	log  *logger.Logger
	cost int

	// compared against on unknown usernames so a miss costs the same as a
	// wrong password
	dummyHash []byte
}

func NewStore(dbh *sql.DB, baseLog *logger.Logger, bcryptCost int) *Store {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("identity: dummy hash: %v", err))
	}
	return &Store{db: dbh, log: baseLog.With("store", "identity"), cost: bcryptCost, dummyHash: dummy}
}

// Register creates a student account. Registration never grants the teacher role.
func (s *Store) Register(ctx context.Context, in NewAccount) (Account, error) {
	return s.Create(ctx, in, rbac.RoleStudent)
}

// Create inserts the account and its role profile in one transaction. The
// role is always chosen by the caller.
func (s *Store) Create(ctx context.Context, in NewAccount, role rbac.Role) (Account, error) {
	if !role.Valid() {
		return Account{}, apperr.Invalid("Select a valid role.")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return Account{}, err
	}
	if in.Password != in.ConfirmPassword {
		return Account{}, ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("identity: hash password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	acc := Account{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      role,
		CreatedAt: now,
	}
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE username=$1`, acc.Username).Scan(&exists)
		switch {
		case err == nil:
			return ErrUsernameTaken
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO accounts (username, email, first_name, last_name, password_hash, created_at)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			acc.Username, acc.Email, acc.FirstName, acc.LastName, string(hash), now.Unix(),
		).Scan(&acc.ID); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrUsernameTaken
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO role_profiles (account_id, role) VALUES ($1,$2)`, acc.ID, string(role)); err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.AccountRegistered, accountKey(acc.ID),
			map[string]any{"username": acc.Username, "role": role})
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			s.log.Error("create account failed", "username", acc.Username, "error", err)
		}
		return Account{}, err
	}
	s.log.Info("account created", "account_id", acc.ID, "role", role)
	return acc, nil
}

// Ensure returns the account named in.Username, creating it with role if it
// does not exist yet.
func (s *Store) Ensure(ctx context.Context, in NewAccount, role rbac.Role) (Account, bool, error) {
	acc, err := s.GetByUsername(ctx, in.Username)
	if err == nil {
		return acc, false, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return Account{}, false, err
	}
	acc, err = s.Create(ctx, in, role)
	if err != nil {
		return Account{}, false, err
	}
	return acc, true, nil
}

// Authenticate checks the credentials and then the claimed role. The two
// failures are distinct errors.
func (s *Store) Authenticate(ctx context.Context, username, password string, claimed rbac.Role) (Account, error) {
	var hash string
	acc, err := s.scanOne(ctx, `WHERE a.username=$1`, &hash, strings.TrimSpace(username))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	if acc.Role != claimed {
		return Account{}, ErrRoleMismatch
	}
	return acc, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (Account, error) {
	var hash string
	return s.scanOne(ctx, `WHERE a.username=$1`, &hash, strings.TrimSpace(username))
}

func (s *Store) scanOne(ctx context.Context, where string, hash *string, arg any) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.username, a.email, a.first_name, a.last_name, a.password_hash, a.created_at, p.role
		  FROM accounts a
		  JOIN role_profiles p ON p.account_id = a.id `+where, arg)
	var acc Account
	var created int64
	var role string
	if err := row.Scan(&acc.ID, &acc.Username, &acc.Email, &acc.FirstName, &acc.LastName, hash, &created, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acc.Role = rbac.Role(role)
	acc.CreatedAt = time.Unix(created, 0).UTC()
	return acc, nil
}

func accountKey(id int64) string { return fmt.Sprintf("account:%d", id) }
