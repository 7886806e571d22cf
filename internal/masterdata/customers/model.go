package customers

import "time"

// CustomerGroup buckets customers for discount scoping.
type CustomerGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Customer optionally belongs to one group; wholesale customers buy at
// the wholesale price tier.
type Customer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	GroupID     int64     `json:"group_id,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsWholesale bool      `json:"is_wholesale"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
