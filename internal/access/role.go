// Package access evaluates partner roles and guards business-scoped operations.
package access

import (
	"strings"

	"gitlab.com/yelinaung/business-ledger/internal/apperr"
	"gitlab.com/yelinaung/business-ledger/internal/models"
)

// Rank maps a partner role to its position in the hierarchy.
func Rank(role models.PartnerRole) (int, error) {
	switch role {
	case models.RoleViewer:
		return 1, nil
	case models.RoleEditor:
		return 2, nil
	case models.RoleOwner:
		return 3, nil
	default:
		return 0, apperr.New(apperr.ErrInvalidOperation, "unrecognized role %q", string(role))
	}
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (models.PartnerRole, error) {
	role := models.PartnerRole(strings.ToLower(strings.TrimSpace(s)))
	if _, err := Rank(role); err != nil {
		return "", err
	}
	return role, nil
}

// Satisfies reports whether held meets required. A nil required role is met
// by any membership. Unrecognized roles never satisfy anything.
func Satisfies(held models.PartnerRole, required *models.PartnerRole) bool {
	heldRank, err := Rank(held)
	if err != nil {
		return false
	}
	if required == nil {
		return true
	}
	requiredRank, err := Rank(*required)
	if err != nil {
		return false
	}
	return heldRank >= requiredRank
}

// ParseAssignableRole parses a role that may be granted through partner
// management. The owner role is never assignable.
func ParseAssignableRole(s string) (models.PartnerRole, error) {
	role, err := ParseRole(s)
	if err != nil {
		return "", err
	}
	if role == models.RoleOwner {
		return "", apperr.New(apperr.ErrInvalidOperation, "role must be editor or viewer")
	}
	return role, nil
}
