package models

import "time"

// Settings is the singleton configuration row for the space.
type Settings struct {
	ID                string    `db:"id" json:"id"`
	BrandName         string    `db:"brand_name" json:"brand_name"`
	LogoURL           *string   `db:"logo_url" json:"logo_url,omitempty"`
	PrimaryColor      *string   `db:"primary_color" json:"primary_color,omitempty"`
	TotalSeats        int       `db:"total_seats" json:"total_seats"`
	DefaultMonthlyFee float64   `db:"default_monthly_fee" json:"default_monthly_fee"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
