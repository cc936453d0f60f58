package model

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/title-reviews/internal/apperr"
)

// Role is the permission tier attached to a user.  The set is closed:
// every switch over Role in the policy engine must handle all three
// values.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.  An empty string maps to
// RoleUser, matching the column default.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", apperr.Validation("role", "role must be one of user, moderator, admin")
	}
	return r, nil
}

// ReservedUsername cannot be registered because /users/me is a route.
const ReservedUsername = "me"

const (
	MaxUsernameLen = 150
	MaxEmailLen    = 254
	MaxNameLen     = 150
)

// UsernamePattern is the character set allowed in usernames.
var UsernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

// User represents a row in the `users` table.
//
// Fields:
//  ID               – primary key identifier.
//  Username         – unique login name.
//  Email            – unique email address.
//  Role             – permission tier.
//  Bio              – optional free-text biography.
//  FirstName        – optional first name.
//  LastName         – optional last name.
//  IsSuperuser      – grants admin rights regardless of Role.
//  ConfirmationHash – bcrypt hash of the outstanding confirmation code;
//                     empty when no code is outstanding.
//  CreatedAt        – timestamp of creation.
//  UpdatedAt        – timestamp of last update.
type User struct {
	ID               uint64    // users.id
	Username         string    // users.username
	Email            string    // users.email
	Role             Role      // users.role
	Bio              string    // users.bio
	FirstName        string    // users.first_name
	LastName         string    // users.last_name
	IsSuperuser      bool      // users.is_superuser
	ConfirmationHash string    // users.confirmation_code
	CreatedAt        time.Time // users.created_at
	UpdatedAt        time.Time // users.updated_at
}

// ValidateUsername checks the registration rules for a username.  The
// reserved word is compared case-sensitively.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return apperr.Validation("username", "username is required")
	case username == ReservedUsername:
		return apperr.Validation("username", "username "+username+" is not available")
	case len(username) > MaxUsernameLen:
		return apperr.Validation("username", "username is too long")
	case !UsernamePattern.MatchString(username):
		return apperr.Validation("username", "username may contain only letters, digits and @/./+/-/_")
	}
	return nil
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address such as "a@b.c"; display names are
// rejected.
func ValidateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	if len(email) > MaxEmailLen {
		return apperr.Validation("email", "email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email", "enter a valid email address")
	}
	return nil
}

// UserPatch is a partial update of a user record.  Nil fields are left
// untouched.
type UserPatch struct {
	Username  *string
	Email     *string
	Role      *Role
	Bio       *string
	FirstName *string
	LastName  *string
}

// Apply copies the set fields of p onto u and validates the result.
func (p UserPatch) Apply(u *User) error {
	if p.Username != nil {
		if err := ValidateUsername(*p.Username); err != nil {
			return err
		}
		u.Username = *p.Username
	}
	if p.Email != nil {
		email := NormalizeEmail(*p.Email)
		if err := ValidateEmail(email); err != nil {
			return err
		}
		u.Email = email
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return apperr.Validation("role", "role must be one of user, moderator, admin")
		}
		u.Role = *p.Role
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.FirstName != nil {
		if len(*p.FirstName) > MaxNameLen {
			return apperr.Validation("first_name", "first_name is too long")
		}
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		if len(*p.LastName) > MaxNameLen {
			return apperr.Validation("last_name", "last_name is too long")
		}
		u.LastName = *p.LastName
	}
	return nil
}
