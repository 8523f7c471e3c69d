// Package taxonomy builds category/type/subtype trees from query results and
// translates checkbox state on those trees into exclusion filters.
//
// Everything here is synchronous and owned by a single caller; a Tree must
// not be shared between goroutines without external locking.
package taxonomy

import "github.com/neonviz/neon/internal/models"

// FieldRole names the part a configured field plays in the taxonomy.
type FieldRole int

// Field roles.
const (
	RoleCategory FieldRole = iota
	RoleType
	RoleSubType
	RoleValue
	RoleID
	RoleSourceID
	roleCount
)

// String returns the configuration name of the role.
func (r FieldRole) String() string {
	switch r {
	case RoleCategory:
		return "category"
	case RoleType:
		return "type"
	case RoleSubType:
		return "subtype"
	case RoleValue:
		return "value"
	case RoleID:
		return "id"
	case RoleSourceID:
		return "source_id"
	default:
		return "unknown"
	}
}

// hierarchy lists the roles that produce group levels, outermost first.
var hierarchy = [...]FieldRole{RoleCategory, RoleType, RoleSubType}

// Fields maps each role to its configured field. Unset roles hold the zero
// FieldReference.
type Fields struct {
	refs [roleCount]models.FieldReference
}

// NewFields builds the lookup table from role assignments.
func NewFields(assign map[FieldRole]models.FieldReference) Fields {
	var f Fields
	for role, ref := range assign {
		if role >= 0 && role < roleCount {
			f.refs[role] = ref
		}
	}

	return f
}

// Get returns the field configured for role.
func (f Fields) Get(role FieldRole) models.FieldReference {
	if role < 0 || role >= roleCount {
		return models.FieldReference{}
	}

	return f.refs[role]
}

// Has reports whether role has a configured column.
func (f Fields) Has(role FieldRole) bool {
	return f.Get(role).IsSet()
}

// With returns a copy of f with role reassigned.
func (f Fields) With(role FieldRole, ref models.FieldReference) Fields {
	if role >= 0 && role < roleCount {
		f.refs[role] = ref
	}

	return f
}

// leafRole is the role whose field describes leaf nodes.
func (f Fields) leafRole() FieldRole {
	if f.Has(RoleValue) {
		return RoleValue
	}

	return RoleID
}

// suppressed reports whether role shares its column with an outer level, in
// which case the outer level's filter already covers it.
func (f Fields) suppressed(role FieldRole) bool {
	ref := f.Get(role)
	if !ref.IsSet() {
		return false
	}

	for _, outer := range hierarchy {
		if outer == role {
			return false
		}

		if f.Has(outer) && f.Get(outer).Equal(ref) {
			return true
		}
	}

	return false
}

// Owned returns the distinct hierarchy fields, used to exclude a taxonomy's
// own filters from the query that feeds it.
func (f Fields) Owned() []models.FieldReference {
	out := make([]models.FieldReference, 0, len(hierarchy))
	for _, role := range hierarchy {
		if f.Has(role) && !f.suppressed(role) {
			out = append(out, f.Get(role))
		}
	}

	return out
}
