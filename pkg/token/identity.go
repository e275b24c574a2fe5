package token

// IdentityToken is a token issued by an identity federation service.
type IdentityToken struct {
	*Token
}

// NewIdentityToken wraps t.
func NewIdentityToken(t *Token) *IdentityToken {
	return &IdentityToken{Token: t}
}

func (i *IdentityToken) str(name string) string {
	s, _ := i.ClaimAsString(name)
	return s
}

// Subject returns sub.
func (i *IdentityToken) Subject() string { return i.str(ClaimSubject) }

// Email returns email.
func (i *IdentityToken) Email() string { return i.str(ClaimEmail) }

// GivenName returns given_name.
func (i *IdentityToken) GivenName() string { return i.str(ClaimGivenName) }

// FamilyName returns family_name.
func (i *IdentityToken) FamilyName() string { return i.str(ClaimFamilyName) }

// UserUUID returns user_uuid.
func (i *IdentityToken) UserUUID() string { return i.str(ClaimUserUUID) }
