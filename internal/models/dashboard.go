package models

import "time"

// DashboardSummary aggregates the headline numbers for the admin landing
// page. Values are computed on demand and cached briefly.
type DashboardSummary struct {
	TotalStudents    int       `json:"total_students"`
	ActiveStudents   int       `json:"active_students"`
	TotalSeats       int       `json:"total_seats"`
	OccupiedSeats    int       `json:"occupied_seats"`
	CurrentlyPresent int       `json:"currently_present"`
	TodayCheckIns    int       `json:"today_check_ins"`
	PendingFees      int       `json:"pending_fees"`
	OverdueFees      int       `json:"overdue_fees"`
	GeneratedAt      time.Time `json:"generated_at"`
}
