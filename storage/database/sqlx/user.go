package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/user"
)

var (
	userColumns = []string{
		"id", "name", "initials", "email", "program", "role", "is_active", "password_hash",
		"calendar_token", "created_at", "updated_at", "last_login",
	}
	userOrderColumns = map[string]string{
		"name":       "name",
		"email":      "email",
		"role":       "role",
		"program":    "program",
		"created_at": "created_at",
		"last_login": "last_login",
	}
)

type userRow struct {
	ID            string      `db:"id"`
	Name          string      `db:"name"`
	Initials      string      `db:"initials"`
	Email         string      `db:"email"`
	Program       string      `db:"program"`
	Role          string      `db:"role"`
	IsActive      bool        `db:"is_active"`
	PasswordHash  []byte      `db:"password_hash"`
	CalendarToken null.String `db:"calendar_token"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
	LastLogin     null.Time   `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		Name:          usr.Name,
		Initials:      usr.Initials,
		Email:         usr.Email,
		Program:       usr.Program,
		Role:          usr.Role,
		IsActive:      usr.IsActive,
		PasswordHash:  usr.PasswordHash,
		CalendarToken: null.NewString(usr.CalendarToken, usr.CalendarToken != ""),
		CreatedAt:     usr.CreatedAt.UTC(),
		UpdatedAt:     usr.UpdatedAt.UTC(),
		LastLogin:     null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:            r.ID,
		Name:          r.Name,
		Initials:      r.Initials,
		Email:         r.Email,
		Program:       r.Program,
		Role:          r.Role,
		IsActive:      r.IsActive,
		PasswordHash:  r.PasswordHash,
		CalendarToken: r.CalendarToken.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func toUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	b := psql.Select("COUNT(*)").From("users").Where(sq.Eq{"email": email})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		b = b.Where(sq.NotEq{"id": ids})
	}

	var count int
	if err := getRow(ctx, repo.db, &count, b); err != nil {
		return errors.Wrap(err, "checking user email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := toUserRow(usr)
	b := psql.Insert("users").Columns(userColumns...).Values(
		r.ID, r.Name, r.Initials, r.Email, r.Program, r.Role, r.IsActive, r.PasswordHash,
		r.CalendarToken, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return r.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	b := psql.Select(userColumns...).From("users")

	if filter != nil {
		// users with Name, Initials or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"initials": val}, sq.ILike{"email": val}})
		}
		if len(filter.Roles) > 0 {
			b = b.Where(sq.Eq{"role": filter.Roles})
		}
		if len(filter.Programs) > 0 {
			b = b.Where(sq.Eq{"program": filter.Programs})
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"is_active": *filter.IsActive})
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	b = b.OrderBy(orderBy(ordering, userOrderColumns)...)

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		b = b.Where(sq.Eq{"email": filter.Email})
	case filter.CalendarToken != "":
		b = b.Where(sq.Eq{"calendar_token": filter.CalendarToken})
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := getRow(ctx, repo.db, &r, b.Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return r.toUser(), nil
}

func (repo *userRepository) GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	b := psql.Select(userColumns...).From("users").Where(sq.Eq{"id": ids})
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users by id")
	}
	return toUsers(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := toUserRow(usr)
	b := psql.Update("users").SetMap(map[string]interface{}{
		"name":           r.Name,
		"initials":       r.Initials,
		"email":          r.Email,
		"program":        r.Program,
		"role":           r.Role,
		"is_active":      r.IsActive,
		"password_hash":  r.PasswordHash,
		"calendar_token": r.CalendarToken,
		"updated_at":     r.UpdatedAt,
		"last_login":     r.LastLogin,
	}).Where(sq.Eq{"id": r.ID})

	n, err := exec(ctx, repo.db, b)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return r.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := exec(ctx, repo.db, psql.Delete("users").Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}
