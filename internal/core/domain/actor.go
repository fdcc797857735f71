package domain

type Role string

const (
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Actor is the authenticated principal supplied by the auth layer.
type Actor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (a Actor) IsManager() bool {
	return a.Role == RoleManager
}
