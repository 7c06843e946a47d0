package auth

// Decision is what a protected-route wrapper renders: a loading placeholder,
// a login prompt, a role-mismatch fallback, or the protected content.
type Decision int

const (
	DecisionLoading Decision = iota
	DecisionLoginRequired
	DecisionForbidden
	DecisionAllowed
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionLoginRequired:
		return "login-required"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "allowed"
	}
}

// Guard evaluates the route-guard contract for the current session. With no
// required roles, any authenticated session is allowed; otherwise the
// session's group claims must intersect the required set.
func (s *Session) Guard(requiredRoles ...string) Decision {
	st := s.Status()
	switch {
	case st.Loading():
		return DecisionLoading
	case !st.Authenticated():
		return DecisionLoginRequired
	case len(requiredRoles) > 0 && (st.Claims == nil || !st.Claims.HasAnyRole(requiredRoles...)):
		return DecisionForbidden
	}
	return DecisionAllowed
}
