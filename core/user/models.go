package user

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ratiba/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Programs
const (
	ProgramDTI = "DTI"
	ProgramDI  = "DI"
)

var (
	AllRoles    = []string{RoleStudent, RoleTeacher, RoleAdmin}
	AllPrograms = []string{ProgramDTI, ProgramDI}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Initials      string    `json:"initials"`
	Email         string    `json:"email"`
	Program       string    `json:"program"`
	Role          string    `json:"role"`
	IsActive      bool      `json:"is_active"`
	PasswordHash  []byte    `json:"-"`
	CalendarToken string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
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

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// IsStaff reports whether u may manage the schedule (sessions, coaching slots, groups).
func (u User) IsStaff() bool { return u.IsAdmin() || u.IsTeacher() }

func (u User) Summary() Summary {
	return Summary{
		ID:       u.ID,
		Name:     u.Name,
		Initials: u.Initials,
		Email:    u.Email,
		Program:  u.Program,
	}
}

// Summary is the public part of a User, embedded in groups and coaching slots.
type Summary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Email    string `json:"email"`
	Program  string `json:"program"`
}

// Initials derives up to two upper-cased initials from a name: "ada lovelace king" -> "AL".
func Initials(name string) string {
	var (
		b     strings.Builder
		count int
	)
	for _, word := range strings.Fields(name) {
		r := []rune(word)[0]
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		if count++; count == 2 {
			break
		}
	}
	return b.String()
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Initials        string `json:"initials" validate:"omitempty,max=4,alpha"`
	Email           string `json:"email" validate:"required,email"`
	Program         string `json:"program" validate:"omitempty,oneof=DTI DI"`
	Role            string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Initials = strings.ToUpper(core.CleanString(nu.Initials))
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Program = strings.ToUpper(core.CleanString(nu.Program))
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	if nu.Initials == "" {
		nu.Initials = Initials(nu.Name)
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields keep their current value.
type UpdateUser struct {
	Name            string `json:"name"`
	Initials        string `json:"initials" validate:"omitempty,max=4,alpha"`
	Email           string `json:"email" validate:"omitempty,email"`
	Program         string `json:"program" validate:"omitempty,oneof=DTI DI"`
	Role            string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// IsPrivileged reports whether uu touches fields only admins may change.
func (uu UpdateUser) IsPrivileged() bool {
	return uu.Role != "" || uu.IsActive != nil || uu.Email != ""
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if initials := strings.ToUpper(core.CleanString(uu.Initials)); initials != "" {
		uu.Initials = initials
	} else {
		uu.Initials = origUsr.Initials
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if program := strings.ToUpper(core.CleanString(uu.Program)); program != "" {
		uu.Program = program
	} else {
		uu.Program = origUsr.Program
	}

	if role := core.CleanString(uu.Role, true /* lower */); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	Programs []string `query:"program"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Programs == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Roles = core.CleanStrings(qf.Roles, true /* lower */)
	qf.Programs = core.CleanStrings(qf.Programs)
	for i, p := range qf.Programs {
		qf.Programs[i] = strings.ToUpper(p)
	}
}

// GetFilter selects a single User. The first non-empty field wins.
type GetFilter struct {
	ID            string
	Email         string
	CalendarToken string
}
