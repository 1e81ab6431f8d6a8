package service

import "devicemail/internal/domain"

// Principal is the authenticated caller of a request: the user and the
// session row that carries the per-session device binding.
type Principal struct {
	User    *domain.User
	Session *domain.Session
}

// DeviceKey is the device bound to the caller's session, if any.
func (p *Principal) DeviceKey() *domain.DeviceKey {
	if p == nil || p.Session == nil {
		return nil
	}
	return p.Session.DeviceKey
}

func (p *Principal) UserID() domain.UserID {
	if p == nil || p.User == nil {
		return domain.UserID{}
	}
	return p.User.ID
}

// AccessIdentity is what a verified access token asserts.
type AccessIdentity struct {
	UserID    domain.UserID
	SessionID domain.SessionID
	DeviceKey *domain.DeviceKey
}
