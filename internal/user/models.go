package user

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Handle       string    `json:"bj_id"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the user's public information: solved.ac fields refreshed on
// every login plus the groups and problems the user tracks.
type Profile struct {
	ID              string    `json:"id"`
	Handle          string    `json:"bj_id"`
	Nickname        string    `json:"nickname"`
	Rank            int       `json:"rank"`
	Rating          int       `json:"rating"`
	SolvedCount     int       `json:"solvedCount"`
	Tier            int       `json:"tier"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	Groups          []string  `json:"group"`
	Problems        []string  `json:"problems"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Card is the compact member view used by group listings and leaderboards.
type Card struct {
	ID              string `json:"id"`
	Nickname        string `json:"nickname"`
	Handle          string `json:"bj_id"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	SolvedCount     int    `json:"solvedCount"`
	Rank            int    `json:"rank"`
	Rating          int    `json:"rating"`
	Tier            int    `json:"tier"`
}

// SignupInput holds the fields required to create an account.
type SignupInput struct {
	ID       string `json:"id" validate:"required,max=64"`
	Handle   string `json:"bj_id" validate:"required,max=64"`
	Nickname string `json:"nickname" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=4,max=72"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   *Profile  `json:"userinfo"`
}
