package models

import "time"

// Seat represents a physical seat. A seat holds at most one current
// occupant; the occupant's Student.SeatNumber mirrors SeatNumber and the
// pair is kept consistent by the seat service. Version increments on every
// occupant change and backs the optimistic concurrency check.
type Seat struct {
	ID         string    `db:"id" json:"id"`
	SeatNumber int       `db:"seat_number" json:"seat_number"`
	StudentID  *string   `db:"student_id" json:"student_id,omitempty"`
	Version    int       `db:"version" json:"version"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Occupied reports whether the seat currently has an occupant.
func (s Seat) Occupied() bool {
	return s.StudentID != nil && *s.StudentID != ""
}

// SeatDetail joins a seat with its occupant's display fields.
type SeatDetail struct {
	Seat
	StudentCode *string `db:"student_code" json:"student_code,omitempty"`
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// SeatHistory is an append-only record of assignment changes.
type SeatHistory struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	OldSeat   *int      `db:"old_seat" json:"old_seat,omitempty"`
	NewSeat   *int      `db:"new_seat" json:"new_seat,omitempty"`
	ChangedBy *string   `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt time.Time `db:"changed_at" json:"changed_at"`
}

// SeatMismatch describes a student whose denormalized seat number
// disagrees with the seats table, as found by the reconciliation pass.
type SeatMismatch struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	StudentSeat    *int    `db:"student_seat" json:"student_seat,omitempty"`
	AssignedSeat   *int    `db:"assigned_seat" json:"assigned_seat,omitempty"`
	AssignedSeatID *string `db:"assigned_seat_id" json:"assigned_seat_id,omitempty"`
}
