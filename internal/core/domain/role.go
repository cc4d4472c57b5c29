package domain

// Role is the authorization tag attached to a connection.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleCustomer Role = "customer"
	RoleCrew     Role = "crew"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a wire-level role tag to a Role. Only the three
// authenticatable roles are accepted; "guest" cannot be requested.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleCrew, RoleAdmin:
		return Role(s), true
	}
	return RoleGuest, false
}

// DefaultTopics returns the topic set granted on successful authentication.
func (r Role) DefaultTopics() []Topic {
	switch r {
	case RoleCrew:
		return []Topic{TopicOrders, TopicUpdates}
	case RoleAdmin:
		return []Topic{TopicOrders, TopicUpdates, TopicSystem}
	case RoleCustomer:
		return []Topic{TopicUpdates}
	}
	return nil
}

// CanUpdateOrders reports whether the role may issue order status commands.
// This is the single permission table consulted by the command service.
func (r Role) CanUpdateOrders() bool {
	return r == RoleCrew || r == RoleAdmin
}

// OrderEventRoles is the default audience for order events.
func OrderEventRoles() []Role {
	return []Role{RoleCrew, RoleAdmin}
}

// SystemErrorRoles is the audience for store failure notifications.
func SystemErrorRoles() []Role {
	return []Role{RoleAdmin}
}
