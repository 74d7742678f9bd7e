package models

import "time"

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodUPI    PaymentMethod = "upi"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodOther  PaymentMethod = "other"
)

// Valid reports whether the method is a known value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodOnline, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is an append-only fee payment record.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	Amount      float64       `db:"amount" json:"amount"`
	Method      PaymentMethod `db:"method" json:"method"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	PaymentDate time.Time     `db:"payment_date" json:"payment_date"`
	RecordedBy  *string       `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// PaymentDetail joins a payment with student display fields.
type PaymentDetail struct {
	Payment
	StudentCode string `db:"student_code" json:"student_code"`
	StudentName string `db:"student_name" json:"student_name"`
}

// PaymentFilter encapsulates list parameters for payments.
type PaymentFilter struct {
	StudentID string
	Page      int
	PageSize  int
}
