package domain

import "time"

type Furniture struct {
	ID          int64
	UserID      string
	Title       string
	Price       int64
	Location    string
	Image       string
	Material    string
	Dimensions  string
	Condition   string
	Style       string
	Description string
	CreatedAt   time.Time
}
