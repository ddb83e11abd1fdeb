package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agrof66/machine-dashboard/pkg/constants"
)

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrDomainNotAllowed = errors.New("email domain not allowed")
	ErrUnknownUser      = errors.New("user is not authorized")
	ErrNoBranches       = errors.New("no branches assigned")
)

// ValidateAccess checks that email belongs to an allowed domain and to a
// directory user with at least one branch.
func (d *Directory) ValidateAccess(email string, allowedDomains []string) (User, error) {
	email = normalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if email == "" || at <= 0 || at == len(email)-1 {
		return User{}, ErrInvalidEmail
	}

	if len(allowedDomains) > 0 {
		domain := email[at+1:]
		allowed := false
		for _, d := range allowedDomains {
			if strings.EqualFold(strings.TrimSpace(d), domain) {
				allowed = true
				break
			}
		}
		if !allowed {
			return User{}, fmt.Errorf("%w: %s", ErrDomainNotAllowed, domain)
		}
	}

	u, ok := d.Lookup(email)
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, email)
	}
	if len(u.Branches) == 0 {
		return User{}, fmt.Errorf("%w: %s", ErrNoBranches, email)
	}
	return u, nil
}

// AllowedBranches returns the branches email may see; ["alle"] means all.
func (d *Directory) AllowedBranches(email string) []string {
	u, ok := d.Lookup(email)
	if !ok {
		return nil
	}
	if u.Unrestricted() {
		return []string{constants.BranchUnrestricted}
	}
	return append([]string(nil), u.Branches...)
}

// BranchOptions lists the branch choices for the user's selector. Admins
// get "Gesamt" followed by their branches; users only their own. For an
// unrestricted user the known branches of the data set are offered.
func (d *Directory) BranchOptions(email string, known []string) []string {
	u, ok := d.Lookup(email)
	if !ok {
		return []string{constants.BranchAll}
	}
	return u.BranchOptions(known)
}

// BranchOptions is the selector content for u.
func (u User) BranchOptions(known []string) []string {
	branches := u.Branches
	if u.Unrestricted() {
		branches = known
	}
	sorted := append([]string(nil), branches...)
	sort.Strings(sorted)
	if u.Role.IsAdmin() || u.Unrestricted() {
		return append([]string{constants.BranchAll}, sorted...)
	}
	return sorted
}

// MayView reports whether u may view branch. "Gesamt" is always permitted
// because it expands to the user's own branches.
func (u User) MayView(branch string) bool {
	if branch == "" || branch == constants.BranchAll || branch == constants.OptionAll || u.Unrestricted() {
		return true
	}
	for _, b := range u.Branches {
		if b == branch {
			return true
		}
	}
	return false
}

// DisplayName renders name plus role, e.g. "L. Hendricks (Admin Mitte)".
func (u User) DisplayName() string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	switch u.Role {
	case RoleSuperAdmin:
		return name + " (Super Admin)"
	case RoleAdmin:
		return fmt.Sprintf("%s (Admin %s)", name, u.Region)
	default:
		return fmt.Sprintf("%s (%s)", name, u.Region)
	}
}

// DisplayName returns the display name of email or email itself when unknown.
func (d *Directory) DisplayName(email string) string {
	u, ok := d.Lookup(email)
	if !ok {
		return email
	}
	return u.DisplayName()
}
