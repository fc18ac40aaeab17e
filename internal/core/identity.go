package core

import "context"

// Identity is a read snapshot of an authenticated user, captured once at bind
// time. The durable record is owned by the store; the presence layer never
// writes it back.
type Identity struct {
	ID       int64
	Nickname string
	AgeGroup string
	Avatar   string
	Roles    []string
	Status   string
}

// Authenticator verifies an opaque credential and resolves it to an identity
// snapshot. A nil result means the credential is invalid, expired, or belongs
// to a banned user; it is never an error the caller must handle.
type Authenticator interface {
	IdentityFromToken(ctx context.Context, token string) *Identity
}
