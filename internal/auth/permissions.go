package auth

import "strings"

// PermissionAll grants every capability. It is the whole permission set
// of a freshly registered admin.
const PermissionAll = "*"

// Capability keys referenced by route guards.
const (
	PermProjectRead = "project:read"
	PermTaskRead    = "task:read"
	PermTaskUpdate  = "task:update"
	PermUserRead    = "user:read"
)

// Permissions is a set of capability strings. Order is irrelevant and
// duplicates carry no meaning.
type Permissions []string

// DefaultPermissions returns the permission set granted at registration.
func DefaultPermissions(role Role) Permissions {
	if role == RoleAdmin {
		return Permissions{PermissionAll}
	}
	return Permissions{PermProjectRead, PermTaskRead, PermTaskUpdate}
}

// Has reports whether the set grants a single capability, treating the
// wildcard as satisfying any check.
func (p Permissions) Has(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, perm := range p {
		if perm == PermissionAll || perm == key {
			return true
		}
	}
	return false
}

// HasAll reports whether every required capability is granted.
func (p Permissions) HasAll(required ...string) bool {
	for _, key := range required {
		if !p.Has(key) {
			return false
		}
	}
	return true
}

// Normalize trims and deduplicates the set, dropping empty entries.
func (p Permissions) Normalize() Permissions {
	if len(p) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(p))
	result := make(Permissions, 0, len(p))
	for _, perm := range p {
		perm = strings.TrimSpace(perm)
		if perm == "" {
			continue
		}
		if _, ok := seen[perm]; ok {
			continue
		}
		seen[perm] = struct{}{}
		result = append(result, perm)
	}
	return result
}
