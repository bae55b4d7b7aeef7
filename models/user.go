package models

// User represents a registered person in our system
type User struct {
	ID        int64  `json:"id"`
	Matricula string `json:"matricula"` // Institutional ID code, supplied by the caller
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// UserFields holds the four caller-supplied columns of a user.
// Create and Update always write all of them together.
type UserFields struct {
	Matricula string
	Name      string
	Email     string
	Role      string
}

// Fields returns the mutable part of the user
func (u *User) Fields() UserFields {
	return UserFields{
		Matricula: u.Matricula,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
	}
}
