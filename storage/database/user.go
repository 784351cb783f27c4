package database

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/face"
	"github.com/trezcool/hudhuria/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// userRow mirrors the users table; nullable columns cannot scan directly
// into user.User.
type userRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	Name         string       `db:"name"`
	Role         string       `db:"role"`
	Phone        string       `db:"phone"`
	ParentPhone  string       `db:"parent_phone"`
	ParentEmail  string       `db:"parent_email"`
	FaceEnrolled bool         `db:"face_enrolled"`
	FaceTemplate []byte       `db:"face_template"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Role:         r.Role,
		Phone:        r.Phone,
		ParentPhone:  r.ParentPhone,
		ParentEmail:  r.ParentEmail,
		FaceEnrolled: r.FaceEnrolled,
		FaceTemplate: decodeDescriptor(r.FaceTemplate),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

const userColumns = `id, email, name, role, phone, parent_phone, parent_email,
	face_enrolled, face_template, password_hash, created_at, updated_at, last_login`

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := `SELECT COUNT(*) FROM users WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		q += ` AND id != ALL($2)`
		args = append(args, pqStringArray(ids))
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `
	INSERT INTO users (id, email, name, role, phone, parent_phone, parent_email, password_hash, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		usr.ID, usr.Email, usr.Name, usr.Role, usr.Phone, usr.ParentPhone, usr.ParentEmail,
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.toUser(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var (
		conds []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, `(name ILIKE $1 OR email ILIKE $1)`)
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, `role = $`+itoa(len(args)))
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += orderByClause(filter.Orderings)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	sets := []string{`updated_at = $1`}
	args := []interface{}{usr.UpdatedAt}
	set := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, col+` = $`+itoa(len(args)))
	}
	if usr.Email != "" {
		set("email", usr.Email)
	}
	if usr.Name != "" {
		set("name", usr.Name)
	}
	if usr.Role != "" {
		set("role", usr.Role)
	}
	if usr.Phone != "" {
		set("phone", usr.Phone)
	}
	if usr.ParentPhone != "" {
		set("parent_phone", usr.ParentPhone)
	}
	if usr.ParentEmail != "" {
		set("parent_email", usr.ParentEmail)
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	args = append(args, usr.ID)

	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $` + itoa(len(args))
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := repo.db.ExecContext(ctx, q, usr.LastLogin, usr.ID); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (repo *userRepository) SetFaceTemplate(ctx context.Context, id string, tmpl face.Descriptor) error {
	q := `UPDATE users SET face_template = $1, face_enrolled = TRUE, updated_at = $2 WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, q, encodeDescriptor(tmpl), time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting face template")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	q := `DELETE FROM users WHERE id = ANY($1)`
	if _, err := repo.db.ExecContext(ctx, q, pqStringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

// encodeDescriptor packs a face descriptor as little-endian float64s.
func encodeDescriptor(d face.Descriptor) []byte {
	if len(d) == 0 {
		return nil
	}
	buf := make([]byte, 8*len(d))
	for i, v := range d {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeDescriptor(buf []byte) face.Descriptor {
	if len(buf) == 0 || len(buf)%8 != 0 {
		return nil
	}
	d := make(face.Descriptor, len(buf)/8)
	for i := range d {
		d[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return d
}
