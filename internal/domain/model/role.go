package model

// Role is the capability class assigned to a principal at authentication
// time. It bounds both the default subscription set handed out on connect
// and the kinds a connection may ever receive.
type Role string

const (
	// RoleAdmin is the elevated role: every kind, plus access to the
	// administrative broadcast operation.
	RoleAdmin Role = "admin"
	// RoleAgent is the standard operator role: business kinds plus a
	// curated subset of operational kinds.
	RoleAgent Role = "agent"
	// RoleViewer is read-only: dashboard and system-health kinds.
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgent, RoleViewer:
		return true
	}
	return false
}

// Elevated reports whether r may use operator-only surfaces such as the
// manual broadcast endpoint.
func (r Role) Elevated() bool { return r == RoleAdmin }

// DefaultSubscriptions returns the kinds a fresh connection with this role
// is subscribed to. It equals the permitted set from the kind table, so a
// client can only ever narrow it, never widen it.
func (r Role) DefaultSubscriptions() []EventKind {
	var out []EventKind
	for kind := range kindTable {
		if kind.PermittedFor(r) {
			out = append(out, kind)
		}
	}
	return out
}

// Permits reports whether the role may receive the kind. Alias of
// EventKind.PermittedFor for call sites that read better role-first.
func (r Role) Permits(kind EventKind) bool { return kind.PermittedFor(r) }
