package models

import "time"

// AppointmentCounts aggregates appointments by status.
type AppointmentCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Canceled  int `json:"canceled"`
	Completed int `json:"completed"`
}

// UserCounts aggregates users by role.
type UserCounts struct {
	Students int `json:"students"`
	Faculty  int `json:"faculty"`
	Admins   int `json:"admins"`
}

// StatsOverview is the admin dashboard summary.
type StatsOverview struct {
	Appointments      AppointmentCounts `json:"appointments"`
	Users             UserCounts        `json:"users"`
	AvailabilitySlots int               `json:"availability_slots"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status AppointmentStatus `db:"status"`
	Count  int               `db:"count"`
}

// RoleCount is one row of a GROUP BY role query.
type RoleCount struct {
	Role  UserRole `db:"role"`
	Count int      `db:"count"`
}

// SystemMetrics is a point-in-time digest of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"avg_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"avg_db_query_duration_ms"`
	Bookings                 map[string]uint64 `json:"bookings"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
