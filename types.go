package authcore

import "context"

// Identity is the account record owned by the identity store. The Service
// reads it and requests updates to the digest, keying-material, and
// verified fields; everything else is the store's business.
type Identity struct {
	ID        int64
	Email     string
	Name      string
	Phone     string
	AddressID int64
	Verified  bool
	Role      string

	PasswordDigest []byte
	PasswordKey    []byte
	FailedLogins   int
}

// Info returns the public projection of the identity. Credential material
// is never part of it.
func (i *Identity) Info() IdentityInfo {
	return IdentityInfo{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		Phone:     i.Phone,
		AddressID: i.AddressID,
		Verified:  i.Verified,
		Role:      i.Role,
	}
}

// IdentityInfo is what callers outside the authentication core get to see
// of an identity.
type IdentityInfo struct {
	ID        int64
	Email     string
	Name      string
	Phone     string
	AddressID int64
	Verified  bool
	Role      string
}

// RegisterInput is the input for [Service.Register].
type RegisterInput struct {
	Email     string
	Name      string
	Phone     string
	AddressID int64
	Password  string
}

// IdentityStore is the identity collaborator. Implementations return
// ErrIdentityNotFound for missing records and ErrDuplicateIdentity for
// email collisions on insert; other errors are treated as unexpected.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id int64) (*Identity, error)
	Insert(ctx context.Context, identity *Identity) (*Identity, error)
	Update(ctx context.Context, identity *Identity) error
	SetVerified(ctx context.Context, id int64, verified bool) error
}

// OTPService generates, delivers, and verifies one-time codes keyed by an
// identity's email address.
type OTPService interface {
	GenerateAndSend(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) (bool, error)
}

// EmailSender delivers mail. The Service treats delivery as
// fire-and-forget: failures are logged, never surfaced to the caller.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
