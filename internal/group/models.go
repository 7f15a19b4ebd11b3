package group

import "time"

// Group is a study group. Members and Problems are in insertion order.
type Group struct {
	Name         string    `json:"group_name"`
	ManagerID    string    `json:"manager_id"`
	GoalTime     int       `json:"goal_time"`
	GoalNumber   int       `json:"goal_number"`
	Tier         int       `json:"tier"`
	IsSecret     bool      `json:"is_secret"`
	PasswordHash string    `json:"-"`
	Bio          string    `json:"group_bio"`
	Members      []string  `json:"members"`
	Problems     []string  `json:"problems"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// CreateInput holds the fields required to create a group.
type CreateInput struct {
	Name       string `json:"group_name" validate:"required,max=64"`
	ManagerID  string `json:"manager_id" validate:"required"`
	GoalTime   int    `json:"goal_time" validate:"gte=0"`
	GoalNumber int    `json:"goal_number" validate:"gte=0"`
	Tier       int    `json:"tier" validate:"gte=0"`
	IsSecret   bool   `json:"is_secret"`
	Password   string `json:"password" validate:"max=72"`
	Bio        string `json:"group_bio" validate:"max=1000"`
}

// UpdateInput holds the mutable group settings. Nil fields and an empty
// Password keep the stored values.
type UpdateInput struct {
	Name       string  `json:"group_name" validate:"required"`
	GoalTime   *int    `json:"goal_time" validate:"omitempty,gte=0"`
	GoalNumber *int    `json:"goal_number" validate:"omitempty,gte=0"`
	IsSecret   *bool   `json:"is_secret"`
	Password   string  `json:"password" validate:"max=72"`
	Bio        *string `json:"group_bio" validate:"omitempty,max=1000"`
}
