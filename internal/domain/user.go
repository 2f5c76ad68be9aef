package domain

// User represents an account that can authenticate and perform catalog writes.
//
// There is no per-user credential: logins are checked against the
// server-wide shared secret, so a user record is identity only.
type User struct {
	Record
	Username string `json:"username"`
	// FavoriteGenre drives recommendations. Empty means no preference.
	FavoriteGenre string `json:"favorite_genre,omitempty"`
	// AvatarColor is a hex color derived from the user ID at creation.
	AvatarColor string `json:"avatar_color,omitempty"`
}

// HasFavoriteGenre reports whether the user declared a genre preference.
func (u *User) HasFavoriteGenre() bool {
	return u.FavoriteGenre != ""
}
