package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Request status values shared by the request tables.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusResolved   = "resolved"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ValidRequestStatus reports whether s is one of the request status values.
func ValidRequestStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusApproved, StatusRejected,
		StatusResolved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// HealthInsuranceRequest is a foreign health insurance quote request. It may
// be addressed either by its own id or by the website session that created it.
type HealthInsuranceRequest struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	SessionID      string    `json:"session_id"      gorm:"type:varchar(64);index"`
	FullName       string    `json:"full_name"       gorm:"type:varchar(255)"`
	Phone          string    `json:"phone"           gorm:"type:varchar(32)"`
	Email          string    `json:"email"           gorm:"type:varchar(255)"`
	CompanyName    string    `json:"company_name"    gorm:"type:varchar(255)"`
	AgeGroup       string    `json:"age_group"       gorm:"type:varchar(32)"`
	DurationMonths int       `json:"duration_months"`
	Status         string    `json:"status"          gorm:"type:varchar(32);not null;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for HealthInsuranceRequest.
func (HealthInsuranceRequest) TableName() string { return "health_insurance_requests" }

// ServiceRequest is a generic service request from the website.
type ServiceRequest struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);index"`
	ServiceType string    `json:"service_type" gorm:"type:varchar(64)"`
	Title       string    `json:"title"        gorm:"type:varchar(255)"`
	Description string    `json:"description"  gorm:"type:text"`
	Priority    string    `json:"priority"     gorm:"type:varchar(16)"`
	Status      string    `json:"status"       gorm:"type:varchar(32);not null;index"`
	FileName    string    `json:"file_name"    gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for ServiceRequest.
func (ServiceRequest) TableName() string { return "service_requests" }

// Companion is a person travelling with the applicant.
type Companion struct {
	Kimlik string `json:"kimlik"`
	Name   string `json:"name"`
}

// VoluntaryReturnForm is a completed voluntary-return petition, either from
// the Telegram wizard (ChatID set) or from the website.
type VoluntaryReturnForm struct {
	ID          string                          `json:"id"           gorm:"type:char(36);primaryKey"`
	ChatID      int64                           `json:"chat_id"      gorm:"index"`
	FullNameTR  string                          `json:"full_name_tr" gorm:"type:varchar(255);not null"`
	FullNameAR  string                          `json:"full_name_ar" gorm:"type:varchar(255);not null"`
	KimlikNo    string                          `json:"kimlik_no"    gorm:"type:varchar(11);not null;index"`
	GSM         string                          `json:"gsm"          gorm:"type:varchar(20)"`
	SinirKapisi string                          `json:"sinir_kapisi" gorm:"type:varchar(100);not null"`
	Companions  datatypes.JSONType[[]Companion] `json:"refakat_entries"`
	TravelDate  string                          `json:"custom_date"  gorm:"type:varchar(10)"`
	Source      string                          `json:"source"       gorm:"type:varchar(16);not null"`
	Status      string                          `json:"status"       gorm:"type:varchar(32);not null;index"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// TableName returns the database table name for VoluntaryReturnForm.
func (VoluntaryReturnForm) TableName() string { return "voluntary_return_forms" }
