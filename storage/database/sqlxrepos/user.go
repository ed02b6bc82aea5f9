package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fourmis/core"
	"github.com/trezcool/fourmis/core/user"
)

const userColumns = "id, name, email, role, is_active, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         core.Role(r.Role),
		IsActive:     r.IsActive,
		PasswordHash: []byte(r.PasswordHash),
		CreatedAt:    utc(r.CreatedAt),
		UpdatedAt:    utc(r.UpdatedAt),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = utc(r.LastLogin.Time)
	}
	return usr
}

func lastLogin(usr user.User) null.Time {
	return null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero())
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{baseRepository{db: db}}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := "SELECT COUNT(*) FROM user_profiles WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		if q, args, err = in(q+" AND id NOT IN (?)", email, ids); err != nil {
			return errors.Wrap(err, "building query")
		}
	}

	var count int
	if err := get(ctx, repo.executor(exec), &count, q, args...); err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.NewString()
	_, err := execute(ctx, repo.executor(exec),
		"INSERT INTO user_profiles ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		usr.ID, usr.Name, usr.Email, string(usr.Role), usr.IsActive, string(usr.PasswordHash),
		usr.CreatedAt, usr.UpdatedAt, lastLogin(usr),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := "SELECT " + userColumns + " FROM user_profiles"
	var arg interface{}
	switch {
	case filter.ID != "":
		q, arg = q+" WHERE id = ?", filter.ID
	case filter.Email != "":
		q, arg = q+" WHERE email = ?", filter.Email
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := get(ctx, repo.executor(exec), &row, q, arg); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	n, err := execAffected(ctx, repo.executor(exec),
		`UPDATE user_profiles
		SET name = ?, email = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ?
		WHERE id = ?`,
		usr.Name, usr.Email, string(usr.Role), usr.IsActive, string(usr.PasswordHash), usr.UpdatedAt, lastLogin(usr),
		usr.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
