package models

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Role is the marketplace role of a user
type Role string

const (
	RoleClient Role = "CLIENT"
	RolePro    Role = "PRO"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole normalizes and validates a role name
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleClient, RolePro, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Settings is the singleton row for process-wide secrets
type Settings struct {
	BaseModel
	SessionSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first start (64 hex chars)
}

// User represents a marketplace account
type User struct {
	BaseModel
	Email        string    `json:"email" gorm:"unique;not null"` // Stored lowercased
	PasswordHash string    `json:"-"`                            // Empty for accounts without a password
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null;default:CLIENT;index"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	ClientProfile *ClientProfile `json:"client_profile,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ProProfile    *ProProfile    `json:"pro_profile,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ClientProfile holds client-specific account details
type ClientProfile struct {
	BaseModel
	UserID   string `json:"user_id" gorm:"not null;uniqueIndex"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
}

// ProProfile holds professional-specific account details
type ProProfile struct {
	BaseModel
	UserID      string    `json:"user_id" gorm:"not null;uniqueIndex"`
	CompanyName string    `json:"company_name"`
	Description string    `json:"description" gorm:"type:text"`
	City        string    `json:"city"`
	KvkNumber   string    `json:"kvk_number"` // Chamber of Commerce registration
	Verified    bool      `json:"verified" gorm:"not null;default:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Categories []ProCategory `json:"categories,omitempty" gorm:"foreignKey:ProProfileID;constraint:OnDelete:CASCADE"`
}

// Category is a trade a job belongs to and a pro can cover
type Category struct {
	BaseModel
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"not null;unique"`
	Description string `json:"description" gorm:"type:text"`
}

// ProCategory associates a pro profile with a category it covers
type ProCategory struct {
	ProProfileID string    `json:"pro_profile_id" gorm:"primaryKey;type:varchar(26)"`
	CategoryID   string    `json:"category_id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`

	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusOpen       JobStatus = "OPEN"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusCancelled  JobStatus = "CANCELLED"
	JobStatusExpired    JobStatus = "EXPIRED"
)

// Job is a request for work posted by a client
type Job struct {
	BaseModel
	ClientID    string    `json:"client_id" gorm:"not null;index"`
	CategoryID  string    `json:"category_id" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	City        string    `json:"city"`
	Postcode    string    `json:"postcode"`
	BudgetCents *int64    `json:"budget_cents"`
	Status      JobStatus `json:"status" gorm:"type:varchar(16);not null;default:OPEN;index"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Client   *User      `json:"client,omitempty" gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Category *Category  `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Photos   []JobPhoto `json:"photos,omitempty" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
}

// JobPhoto is an uploaded image attached to a job
type JobPhoto struct {
	BaseModel
	JobID string `json:"job_id" gorm:"not null;index"`
	URL   string `json:"url" gorm:"not null"`
}

// BidStatus is the lifecycle state of a bid
type BidStatus string

const (
	BidStatusPending   BidStatus = "PENDING"
	BidStatusAccepted  BidStatus = "ACCEPTED"
	BidStatusRejected  BidStatus = "REJECTED"
	BidStatusWithdrawn BidStatus = "WITHDRAWN"
)

// Bid is an offer submitted by a pro against a job
type Bid struct {
	BaseModel
	JobID       string    `json:"job_id" gorm:"not null;uniqueIndex:idx_bids_job_pro"`
	ProID       string    `json:"pro_id" gorm:"not null;uniqueIndex:idx_bids_job_pro"`
	AmountCents int64     `json:"amount_cents" gorm:"not null"`
	Message     string    `json:"message" gorm:"type:text"`
	Status      BidStatus `json:"status" gorm:"type:varchar(16);not null;default:PENDING"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Job *Job  `json:"job,omitempty" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	Pro *User `json:"pro,omitempty" gorm:"foreignKey:ProID;constraint:OnDelete:CASCADE"`
}

// Message is a direct message between a job's client and a bidding pro
type Message struct {
	BaseModel
	JobID       string     `json:"job_id" gorm:"not null;index"`
	SenderID    string     `json:"sender_id" gorm:"not null;index"`
	RecipientID string     `json:"recipient_id" gorm:"not null;index"`
	Body        string     `json:"body" gorm:"type:text;not null"`
	ReadAt      *time.Time `json:"read_at"`

	Job       *Job  `json:"-" gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE"`
	Sender    *User `json:"-" gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	Recipient *User `json:"-" gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE"`
}

// Service is a paid add-on pros can buy (featured listing, verification check)
type Service struct {
	BaseModel
	Name        string    `json:"name" gorm:"not null"`
	Slug        string    `json:"slug" gorm:"not null;unique"`
	Description string    `json:"description" gorm:"type:text"`
	PriceCents  int64     `json:"price_cents" gorm:"not null"`
	Active      bool      `json:"active" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PurchaseStatus is the payment state of a service purchase
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "PENDING"
	PurchaseStatusPaid      PurchaseStatus = "PAID"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// ServicePurchase records a pro buying a service, optionally for a job
type ServicePurchase struct {
	BaseModel
	ServiceID  string         `json:"service_id" gorm:"not null;index"`
	ProID      string         `json:"pro_id" gorm:"not null;index"`
	JobID      *string        `json:"job_id"`
	PriceCents int64          `json:"price_cents" gorm:"not null"` // Snapshot at purchase time
	Status     PurchaseStatus `json:"status" gorm:"type:varchar(16);not null;default:PENDING"`
	PaidAt     *time.Time     `json:"paid_at"`

	Service *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
	Pro     *User    `json:"-" gorm:"foreignKey:ProID;constraint:OnDelete:CASCADE"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&Settings{}, &User{}, &ClientProfile{}, &ProProfile{}, &Category{}, &ProCategory{},
		&Job{}, &JobPhoto{}, &Bid{}, &Message{}, &Service{}, &ServicePurchase{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// FindByIDWithPreload finds a record by ID with preloading
func FindByIDWithPreload[T any](db *gorm.DB, id string, model *T, preloads ...string) error {
	query := db
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	return query.Where("id = ?", id).First(model).Error
}
