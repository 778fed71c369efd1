package auth

import (
	"errors"

	"github.com/valinor-ai/authority/internal/authority"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity represents an authenticated user's claims. It is the Subject the
// engine evaluates for requests.
type Identity struct {
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	RoleNames   []string       `json:"roles"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	TokenType   string         `json:"token_type"`
}

var _ authority.Subject = (*Identity)(nil)

// Roles returns the identity's role names.
func (i *Identity) Roles() []string {
	return i.RoleNames
}

// Attribute exposes the built-in claims under "id", "email" and "name";
// anything else is looked up in Attributes.
func (i *Identity) Attribute(name string) (any, bool) {
	switch name {
	case "id":
		return i.UserID, i.UserID != ""
	case "email":
		return i.Email, i.Email != ""
	case "name":
		return i.DisplayName, i.DisplayName != ""
	}
	v, ok := i.Attributes[name]
	return v, ok
}
