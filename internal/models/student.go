package models

import "time"

// StudentStatus captures the subscription state of a member.
type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
)

// Valid reports whether the status is a known value.
func (s StudentStatus) Valid() bool {
	return s == StudentStatusActive || s == StudentStatusInactive
}

// FeeStatus captures the billing state of a member.
type FeeStatus string

const (
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusPending FeeStatus = "pending"
	FeeStatusOverdue FeeStatus = "overdue"
)

// Valid reports whether the fee status is a known value.
func (s FeeStatus) Valid() bool {
	return s == FeeStatusPaid || s == FeeStatusPending || s == FeeStatusOverdue
}

// Student code format: fixed prefix plus a zero-padded numeric suffix,
// e.g. SS1001. Codes are assigned at registration and never reused.
const (
	StudentCodePrefix = "SS"
	StudentCodeSeed   = "SS1001"
)

// Student represents a registered member of the study space.
type Student struct {
	ID         string        `db:"id" json:"id"`
	Code       string        `db:"ss_id" json:"ss_id"`
	Name       string        `db:"name" json:"name"`
	Phone      string        `db:"phone" json:"phone"`
	Photo      *string       `db:"photo" json:"photo,omitempty"`
	MonthlyFee float64       `db:"monthly_fee" json:"monthly_fee"`
	Discount   float64       `db:"discount" json:"discount"`
	Status     StudentStatus `db:"status" json:"status"`
	FeeStatus  FeeStatus     `db:"fee_status" json:"fee_status"`
	FeeDueDate *time.Time    `db:"fee_due_date" json:"fee_due_date,omitempty"`
	SeatNumber *int          `db:"seat_number" json:"seat_number,omitempty"`
	DateJoined time.Time     `db:"date_joined" json:"date_joined"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// NetFee returns the suggested payment amount for one billing period.
func (s Student) NetFee() float64 {
	net := s.MonthlyFee - s.Discount
	if net < 0 {
		return 0
	}
	return net
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    *StudentStatus
	FeeStatus *FeeStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
