package models

import (
	"database/sql"
	"time"
)

// User roles
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleTeacher    = "TEACHER"
)

// Task statuses
const (
	StatusRegistered = "REGISTERED"
	StatusConfirmed  = "CONFIRMED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// ValidStatus reports whether s is one of the known task statuses.
// Any transition between valid statuses is allowed.
func ValidStatus(s string) bool {
	switch s {
	case StatusRegistered, StatusConfirmed, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func ValidRole(r string) bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher:
		return true
	default:
		return false
	}
}

type User struct {
	ID              int            `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	PhoneNumber     sql.NullString `json:"phone_number"`
	Password        sql.NullString `json:"-"`
	Role            string         `json:"role"`
	AcademyID       sql.NullInt64  `json:"academy_id"`
	IsApproved      bool           `json:"is_approved"`
	BusinessLicense sql.NullString `json:"business_license"`

	// Kakao notification linkage. Token values never leave the server.
	IsKakaoLinked     bool           `json:"is_kakao_linked"`
	KakaoID           sql.NullString `json:"-"`
	KakaoAccessToken  sql.NullString `json:"-"`
	KakaoRefreshToken sql.NullString `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Task struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Images       string       `json:"images"` // JSON array of URLs
	DueDate      sql.NullTime `json:"due_date"`
	Status       string       `json:"status"`
	AssignedToID int          `json:"assigned_to_id"`
	CreatedByID  int          `json:"created_by_id"`
	AcademyID    int          `json:"academy_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Denormalized fields populated by list queries
	AssignedToName string `json:"assigned_to_name,omitempty"`
	CreatedByName  string `json:"created_by_name,omitempty"`
}

// TaskStatusHistory is an append-only audit row, one per observed status
// change. Never mutated after insert.
type TaskStatusHistory struct {
	ID             int       `json:"id"`
	TaskID         int       `json:"task_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ChangedByID    int       `json:"changed_by_id"`
	ChangedByName  string    `json:"changed_by_name"`
	ChangedByRole  string    `json:"changed_by_role"`
	CreatedAt      time.Time `json:"created_at"`
}

type Academy struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Subscription struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Amount        int       `json:"amount"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	PaymentID     string    `json:"payment_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type Payment struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	Amount        int       `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	PaymentID     string    `json:"payment_id"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
