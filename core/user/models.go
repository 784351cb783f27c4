package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hudhuria/core"
	"github.com/trezcool/hudhuria/core/face"
)

// Roles. A user carries exactly one role.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

var AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

type User struct {
	ID           string          `json:"id" db:"id"`
	Email        string          `json:"email" db:"email"`
	Name         string          `json:"name" db:"name"`
	Role         string          `json:"role" db:"role"`
	Phone        string          `json:"phone,omitempty" db:"phone"`
	ParentPhone  string          `json:"parent_phone,omitempty" db:"parent_phone"`
	ParentEmail  string          `json:"parent_email,omitempty" db:"parent_email"`
	FaceEnrolled bool            `json:"face_registered" db:"face_enrolled"`
	FaceTemplate face.Descriptor `json:"-" db:"-"`
	PasswordHash []byte          `json:"-" db:"password_hash"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time       `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Name            string `json:"name" validate:"required"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	Phone           string `json:"phone"`
	ParentPhone     string `json:"parent_phone"`
	ParentEmail     string `json:"parent_email" validate:"omitempty,email"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.ParentEmail = core.CleanString(nu.ParentEmail, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := svc.validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	Email       string `json:"email" validate:"omitempty,email"`
	Name        string `json:"name"`
	Role        string `json:"role" validate:"omitempty,userrole"`
	Phone       string `json:"phone"`
	ParentPhone string `json:"parent_phone"`
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
}

func (uu *UpdateUser) Validate(origUsr User, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}

	if err := svc.validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required,min=6"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(svc *Service) error { return svc.validate.Struct(rp) }

type ChangePassword struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

func (cp ChangePassword) Validate(svc *Service) error { return svc.validate.Struct(cp) }

type QueryFilter struct {
	// Search does a case-insensitive match on Name or Email.
	Search string `query:"search"`
	Role   string `query:"role"`
	// Orderings overrides the default most-recent-first ordering; unknown
	// fields are ignored by the repositories.
	Orderings []core.DBOrdering `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool { return qf.Search == "" && qf.Role == "" }

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true)
}
