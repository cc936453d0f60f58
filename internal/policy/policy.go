// Package policy decides whether an actor may perform an action on a
// resource.  Decisions are pure: they read only the actor, the action and
// the ownership of the target, and have no side effects.
package policy

import (
	"github.com/iliyamo/title-reviews/internal/apperr"
	"github.com/iliyamo/title-reviews/internal/model"
)

// Actor is the caller of a domain operation.  The zero value is anonymous.
type Actor struct {
	UserID    uint64
	Username  string
	Role      model.Role
	Superuser bool
	authed    bool
}

// Anonymous returns an unauthenticated actor.
func Anonymous() Actor { return Actor{} }

// FromUser returns an authenticated actor for u.
func FromUser(u *model.User) Actor {
	return Actor{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Superuser: u.IsSuperuser,
		authed:    true,
	}
}

// IsAuthenticated reports whether the actor carries an identity.
func (a Actor) IsAuthenticated() bool { return a.authed }

// IsAdmin reports whether the actor has admin rights.
func (a Actor) IsAdmin() bool {
	return a.authed && (a.Role == model.RoleAdmin || a.Superuser)
}

// moderates reports whether the actor may edit content authored by others.
func (a Actor) moderates() bool {
	if !a.authed {
		return false
	}
	switch a.Role {
	case model.RoleModerator, model.RoleAdmin:
		return true
	case model.RoleUser:
		return a.Superuser
	}
	return a.Superuser
}

// Action is what the actor wants to do.
type Action int

const (
	ActionList Action = iota
	ActionRetrieve
	ActionCreate
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionList:
		return "list"
	case ActionRetrieve:
		return "retrieve"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// ReadOnly reports whether the action never mutates state.
func (a Action) ReadOnly() bool { return a == ActionList || a == ActionRetrieve }

// Resource is the kind of thing an action targets.
type Resource int

const (
	ResourceCategory Resource = iota
	ResourceGenre
	ResourceTitle
	ResourceReview
	ResourceComment
	// ResourceUser is any user record, managed by admins.
	ResourceUser
	// ResourceProfile is the actor's own user record.
	ResourceProfile
)

func (r Resource) String() string {
	switch r {
	case ResourceCategory:
		return "category"
	case ResourceGenre:
		return "genre"
	case ResourceTitle:
		return "title"
	case ResourceReview:
		return "review"
	case ResourceComment:
		return "comment"
	case ResourceUser:
		return "user"
	case ResourceProfile:
		return "profile"
	}
	return "unknown"
}

// Target identifies what is acted on.  OwnerID is the author of a review
// or comment, or the user id of a profile; it is ignored elsewhere and
// may be zero for create/list.
type Target struct {
	Resource Resource
	OwnerID  uint64
}

// On is shorthand for a Target without an owner.
func On(r Resource) Target { return Target{Resource: r} }

// Owned is shorthand for a Target owned by ownerID.
func Owned(r Resource, ownerID uint64) Target {
	return Target{Resource: r, OwnerID: ownerID}
}

// Decision is the outcome of Decide.
type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

// Decide evaluates the access rules in precedence order.
func Decide(a Actor, act Action, t Target) Decision {
	switch t.Resource {
	case ResourceCategory, ResourceGenre, ResourceTitle:
		if act.ReadOnly() {
			return Allow
		}
		return Decision(a.IsAdmin())

	case ResourceReview, ResourceComment:
		if act.ReadOnly() {
			return Allow
		}
		if !a.IsAuthenticated() {
			return Deny
		}
		if act == ActionCreate {
			return Allow
		}
		return Decision(a.UserID == t.OwnerID || a.moderates())

	case ResourceUser:
		return Decision(a.IsAdmin())

	case ResourceProfile:
		if !a.IsAuthenticated() || a.UserID != t.OwnerID {
			return Deny
		}
		return Decision(act == ActionRetrieve || act == ActionUpdate)
	}
	return Deny
}

// Check is Decide returning an error suitable for the caller: anonymous
// actors get Unauthenticated, authenticated ones PermissionDenied.
func Check(a Actor, act Action, t Target) error {
	if Decide(a, act, t) == Allow {
		return nil
	}
	if !a.IsAuthenticated() {
		return apperr.Unauthenticated("authentication credentials were not provided")
	}
	return apperr.PermissionDenied("you do not have permission to " + act.String() + " this " + t.Resource.String())
}
