package auth

import "strings"

// Attribute names read from the identity provider.
const (
	AttrSubject     = "sub"
	AttrEmail       = "email"
	AttrName        = "name"
	AttrGivenName   = "given_name"
	AttrFamilyName  = "family_name"
	AttrRole        = "custom:role"
	AttrStoreAccess = "custom:store_access"
	AttrStatus      = "custom:status"
)

// Attributes maps provider attribute names to their values.
type Attributes map[string]string

// Get returns the trimmed value stored under name.
func (a Attributes) Get(name string) string {
	if a == nil {
		return ""
	}
	return strings.TrimSpace(a[name])
}

func (a Attributes) Email() string {
	return a.Get(AttrEmail)
}

func (a Attributes) Role() Role {
	return ParseRole(a.Get(AttrRole))
}

func (a Attributes) StoreAccess() StoreAccess {
	return ParseStoreAccess(a.Get(AttrStoreAccess))
}

func (a Attributes) AccountStatus() AccountStatus {
	return ParseAccountStatus(a.Get(AttrStatus))
}

// DisplayName prefers the full name, then given and family names, then the
// email address.
func (a Attributes) DisplayName() string {
	if name := a.Get(AttrName); name != "" {
		return name
	}

	full := strings.TrimSpace(a.Get(AttrGivenName) + " " + a.Get(AttrFamilyName))
	if full != "" {
		return full
	}

	return a.Email()
}

// Clone returns an independent copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
