package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Course is a sellable catalog entry with bilingual titles
type Course struct {
	ID           int64           `db:"id" json:"id"`
	CategoryID   sql.NullInt64   `db:"category_id" json:"category_id,omitempty"`
	InstructorID sql.NullInt64   `db:"instructor_id" json:"instructor_id,omitempty"`
	TitleEn      string          `db:"title_en" json:"title_en"`
	TitleAr      string          `db:"title_ar" json:"title_ar"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Currency     string          `db:"currency" json:"currency"`
	Published    bool            `db:"published" json:"published"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID      int64  `db:"id" json:"id"`
	NameEn  string `db:"name_en" json:"name_en"`
	NameAr  string `db:"name_ar" json:"name_ar"`
	Slug    string `db:"slug" json:"slug"`
	Visible bool   `db:"visible" json:"visible"`
}

type Instructor struct {
	ID     int64  `db:"id" json:"id"`
	NameEn string `db:"name_en" json:"name_en"`
	NameAr string `db:"name_ar" json:"name_ar"`
	Bio    string `db:"bio" json:"bio"`
	Email  string `db:"email" json:"email"`
}

// Session is a scheduled run of a course with limited seats
type Session struct {
	ID         int64     `db:"id" json:"id"`
	CourseID   int64     `db:"course_id" json:"course_id"`
	StartsAt   time.Time `db:"starts_at" json:"starts_at"`
	TotalSeats int       `db:"total_seats" json:"total_seats"`
	Available  int       `db:"available" json:"available"`
	Reserved   int       `db:"reserved" json:"reserved"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Attachment is a downloadable file belonging to a course.
// Deliverable attachments get a secure link once the buyer is enrolled.
type Attachment struct {
	ID          int64     `db:"id" json:"id"`
	CourseID    int64     `db:"course_id" json:"course_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StoragePath string    `db:"storage_path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	Deliverable bool      `db:"deliverable" json:"deliverable"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Cart belongs to a user after login, or to an anonymous visitor before
type Cart struct {
	ID          int64          `db:"id" json:"id"`
	UserID      sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	AnonymousID sql.NullString `db:"anonymous_id" json:"anonymous_id,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CartItem is unique per (cart_id, course_id, session_id)
type CartItem struct {
	ID        int64         `db:"id" json:"id"`
	CartID    int64         `db:"cart_id" json:"cart_id"`
	CourseID  int64         `db:"course_id" json:"course_id"`
	SessionID sql.NullInt64 `db:"session_id" json:"session_id,omitempty"`
	Quantity  int           `db:"quantity" json:"quantity"`
	AddedAt   time.Time     `db:"added_at" json:"added_at"`
}

// Order is an immutable snapshot of a cart at checkout time
type Order struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem carries point-in-time copies of course title and price so
// later catalog edits never alter historical orders
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	CourseID  int64           `db:"course_id" json:"course_id"`
	SessionID sql.NullInt64   `db:"session_id" json:"session_id,omitempty"`
	TitleEn   string          `db:"title_en" json:"title_en"`
	TitleAr   string          `db:"title_ar" json:"title_ar"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Currency  string          `db:"currency" json:"currency"`
	Quantity  int             `db:"quantity" json:"quantity"`
}

// Payment is one provider attempt for an order; retries create new rows
type Payment struct {
	ID          int64          `db:"id" json:"id"`
	OrderID     int64          `db:"order_id" json:"order_id"`
	Provider    string         `db:"provider" json:"provider"`
	ProviderRef sql.NullString `db:"provider_ref" json:"provider_ref,omitempty"`
	Status      string         `db:"status" json:"status"`
	CapturedAt  sql.NullTime   `db:"captured_at" json:"captured_at,omitempty"`
	RawPayload  []byte         `db:"raw_payload" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Enrollment grants a user access to a course/session; unique per
// (user_id, course_id, session_id)
type Enrollment struct {
	ID         int64         `db:"id" json:"id"`
	UserID     int64         `db:"user_id" json:"user_id"`
	CourseID   int64         `db:"course_id" json:"course_id"`
	SessionID  sql.NullInt64 `db:"session_id" json:"session_id,omitempty"`
	OrderID    sql.NullInt64 `db:"order_id" json:"order_id,omitempty"`
	Status     string        `db:"status" json:"status"`
	EnrolledAt time.Time     `db:"enrolled_at" json:"enrolled_at"`
}

// SecureLink is a revocable, countable download token; unique per
// (enrollment_id, attachment_id)
type SecureLink struct {
	ID               int64        `db:"id" json:"id"`
	EnrollmentID     int64        `db:"enrollment_id" json:"enrollment_id"`
	AttachmentID     int64        `db:"attachment_id" json:"attachment_id"`
	Token            string       `db:"token" json:"token"`
	IsRevoked        bool         `db:"is_revoked" json:"is_revoked"`
	DownloadCount    int          `db:"download_count" json:"download_count"`
	LastDownloadedAt sql.NullTime `db:"last_downloaded_at" json:"last_downloaded_at,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

type EmailTemplate struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Subject   string `db:"subject" json:"subject"`
	Body      string `db:"body" json:"body"`
}

type EmailLog struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Recipient string    `db:"recipient" json:"recipient"`
	Template  string    `db:"template" json:"template"`
	Subject   string    `db:"subject" json:"subject"`
	Status    string    `db:"status" json:"status"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
}

// Email log statuses
const (
	EmailStatusSent   = "SENT"
	EmailStatusFailed = "FAILED"
)

// Order statuses
const (
	OrderStatusPending  = "PENDING"
	OrderStatusPaid     = "PAID"
	OrderStatusFailed   = "FAILED"
	OrderStatusRefunded = "REFUNDED"
)

// Payment statuses
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusCompleted  = "COMPLETED"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusCancelled  = "CANCELLED"
	PaymentStatusRefunded   = "REFUNDED"
)

// Enrollment statuses
const (
	EnrollmentStatusPending   = "PENDING"
	EnrollmentStatusPaid      = "PAID"
	EnrollmentStatusNotified  = "NOTIFIED"
	EnrollmentStatusCompleted = "COMPLETED"
	EnrollmentStatusCancelled = "CANCELLED"
)

// orderTransitions enumerates the forward-only order status machine.
// A status absent from the map is terminal.
var orderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusRefunded},
}

// CanTransitionOrder reports whether an order may move from one status
// to another. Backward moves are never allowed.
func CanTransitionOrder(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
