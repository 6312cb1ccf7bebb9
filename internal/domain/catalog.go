package domain

// Uncategorized is the category id of text no keyword set matches
const Uncategorized = 0

// Category is a static classification bucket matched by keywords
type Category struct {
	ID       int      `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Keywords []string `json:"keywords,omitempty" db:"-"`
}

// Store is one marketplace or retailer that can be queried for listings
type Store struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Website   string `json:"website" db:"website"`
	Preferred bool   `json:"preferred" db:"preferred"`
}
