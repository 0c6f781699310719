package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = "id, name, email, is_active, roles, password_hash, created_at, updated_at, last_login"

var (
	userInsertColumns = []string{"id", "name", "email", "is_active", "roles", "password_hash", "created_at", "updated_at"}

	// columns users may be ordered by
	userOrderings = map[string]bool{"name": true, "email": true, "created_at": true, "updated_at": true, "last_login": true}
)

type userRepository struct {
	baseRepo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepo{exec: exec}}
}

func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{email}
	for _, u := range excludedUsers {
		q += " AND id <> ?"
		args = append(args, u.ID)
	}

	var count int
	if err := sqlx.GetContext(ctx, repo.exec, &count, repo.exec.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) error {
	q := "INSERT INTO users (" + strings.Join(userInsertColumns, ", ") + ") VALUES (" + namedParams(userInsertColumns) + ")"
	_, err := namedExec(ctx, repo.getExec(exec), q, usr)
	return trapUniqueErr(err, "inserting user", "email")
}

func (repo userRepository) CreateProfile(ctx context.Context, p user.Profile, exec ...core.DBExecutor) error {
	q := "INSERT INTO profiles (user_id, bio, institute, created_at) VALUES (:user_id, :bio, :institute, :created_at)"
	_, err := namedExec(ctx, repo.getExec(exec), q, p)
	return trapUniqueErr(err, "inserting profile", "user_id")
}

func (repo userRepository) get(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var usr user.User
	q := repo.exec.Rebind("SELECT " + userColumns + " FROM users WHERE " + where)
	if err := sqlx.GetContext(ctx, repo.exec, &usr, q, arg); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.get(ctx, "email = ?", email)
}

func (repo userRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	var p user.Profile
	q := repo.exec.Rebind("SELECT user_id, bio, institute, created_at FROM profiles WHERE user_id = ?")
	if err := sqlx.GetContext(ctx, repo.exec, &p, q, userID); err != nil {
		return user.Profile{}, trapNoRowsErr(err, "profile", userID, "getting profile")
	}
	return p, nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	// users with Name or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, val, val)
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, "roles LIKE ?")
			args = append(args, `%"`+role+`%`)
		}
		where = append(where, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}

	q := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if userOrderings[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "created_at DESC")
	}
	q += " ORDER BY " + strings.Join(orderBy, ", ")

	users := make([]user.User, 0)
	if err := sqlx.SelectContext(ctx, repo.exec, &users, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) error {
	q := `UPDATE users SET name = :name, email = :email, is_active = :is_active, roles = :roles,
		password_hash = :password_hash, updated_at = :updated_at WHERE id = :id`
	res, err := namedExec(ctx, repo.getExec(exec), q, usr)
	if err != nil {
		return trapUniqueErr(err, "updating user", "email")
	}
	if err = checkAffected(res, "user", usr.ID); err != nil {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) UpdateProfile(ctx context.Context, p user.Profile) error {
	q := "UPDATE profiles SET bio = :bio, institute = :institute WHERE user_id = :user_id"
	res, err := namedExec(ctx, repo.exec, q, p)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return checkAffected(res, "profile", p.UserID)
}

func (repo userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	q := repo.exec.Rebind("UPDATE users SET last_login = ? WHERE id = ?")
	res, err := repo.exec.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if err = checkAffected(res, "user", id); err != nil {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "expanding query")
	}
	_, err = repo.exec.ExecContext(ctx, repo.exec.Rebind(q), args...)
	return errors.Wrap(err, "deleting users")
}

// bulk operations

func (repo userRepository) GetUsersByEmail(ctx context.Context, emails []string, exec ...core.DBExecutor) ([]user.User, error) {
	users := make([]user.User, 0, len(emails))
	err := selectIn(ctx, repo.getExec(exec), func(rows *sqlx.Rows) error {
		var usr user.User
		if err := rows.StructScan(&usr); err != nil {
			return err
		}
		users = append(users, usr)
		return nil
	}, "SELECT "+userColumns+" FROM users WHERE email IN (?)", emails)
	if err != nil {
		return nil, errors.Wrap(err, "getting users by email")
	}
	return users, nil
}

func (repo userRepository) BulkCreateUsers(ctx context.Context, users []user.User, exec ...core.DBExecutor) (int64, error) {
	return bulkInsert(ctx, repo.getExec(exec), "users", userInsertColumns, len(users), func(i int) []interface{} {
		u := users[i]
		return []interface{}{u.ID, u.Name, u.Email, u.IsActive, u.Roles, u.PasswordHash, u.CreatedAt, u.UpdatedAt}
	})
}

func (repo userRepository) BulkCreateProfiles(ctx context.Context, profiles []user.Profile, exec ...core.DBExecutor) error {
	_, err := bulkInsert(ctx, repo.getExec(exec), "profiles", []string{"user_id", "bio", "institute", "created_at"}, len(profiles),
		func(i int) []interface{} {
			p := profiles[i]
			return []interface{}{p.UserID, p.Bio, p.Institute, p.CreatedAt}
		})
	return err
}
