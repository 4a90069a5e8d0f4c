package domain

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSeller   Role = "seller"
	RoleOperator Role = "operator"
)

// Identity is who is acting. The zero value is the anonymous identity.
type Identity struct {
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Contact     string `json:"contact,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

func Anonymous() Identity {
	return Identity{}
}

func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

func (i Identity) IsOperator() bool {
	return !i.IsAnonymous() && i.Role == RoleOperator
}

func (i Identity) IsSeller() bool {
	return !i.IsAnonymous() && i.Role == RoleSeller
}
