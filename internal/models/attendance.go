package models

import (
	"fmt"
	"time"
)

// AttendanceRecord is one check-in/check-out session. A session is open
// while CheckOut is null; a student has at most one open session at a time.
type AttendanceRecord struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	CheckIn    time.Time  `db:"check_in" json:"check_in"`
	CheckOut   *time.Time `db:"check_out" json:"check_out,omitempty"`
	SeatNumber *int       `db:"seat_number" json:"seat_number,omitempty"`
	RecordedBy *string    `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Open reports whether the session has no recorded check-out.
func (r AttendanceRecord) Open() bool {
	return r.CheckOut == nil
}

// Duration renders elapsed session time floored to whole hours and
// minutes, using now for open sessions. Display only, never persisted.
func (r AttendanceRecord) Duration(now time.Time) string {
	end := now
	if r.CheckOut != nil {
		end = *r.CheckOut
	}
	elapsed := end.Sub(r.CheckIn)
	if elapsed < 0 {
		elapsed = 0
	}
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// AttendanceDetail joins a session with student display fields.
type AttendanceDetail struct {
	AttendanceRecord
	StudentCode string `db:"student_code" json:"student_code"`
	StudentName string `db:"student_name" json:"student_name"`
	StudentSeat *int   `db:"student_seat" json:"student_seat,omitempty"`
	Phone       string `db:"phone" json:"phone"`
}
