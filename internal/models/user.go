package models

import "time"

// User is a stored account. Profile fields are empty until the first profile
// submission; LastLogin is nil only for rows inherited from schemas that
// predate the column.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Profile
	LastLogin *time.Time
}

// Profile is the set of optional attributes overwritten as a whole by the
// profile completion flow.
type Profile struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	JobTitle        string `form:"job_title" json:"job_title"`
	FavoriteService string `form:"favorite_service" json:"favorite_service"`
	Region          string `form:"region" json:"region"`
	Bio             string `form:"bio" json:"bio"`
}

// IsEmpty reports whether no profile attribute has been filled in.
func (p Profile) IsEmpty() bool {
	return p == Profile{}
}

// LoginRequest is the credentials form. Password is never trimmed.
type LoginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}
