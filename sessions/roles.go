package sessions

// Roles issued by the backend. The set is open; gates compare the stored
// role by exact string equality.
const (
	RoleSuperAdmin = "super admin"
	RoleTechAdmin  = "tech admin"
	RoleGradAdmin  = "grad admin"
)

// HasRole reports whether the session is authenticated with one of roles.
func (s *Store) HasRole(roles ...string) bool {
	if !s.IsAuthenticated() {
		return false
	}
	current := s.Role()
	for _, role := range roles {
		if role == current {
			return true
		}
	}
	return false
}
