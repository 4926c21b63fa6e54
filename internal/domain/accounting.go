package domain

import "time"

// Transaction types.
const (
	TxIncome  = "income"
	TxExpense = "expense"
)

// AccountingAuth is an accounting-bot login bound to a Telegram chat.
type AccountingAuth struct {
	ID              uint       `gorm:"primaryKey"`
	TelegramChatID  string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	UserID          string     `gorm:"type:char(36);not null"`
	Email           string     `gorm:"type:varchar(255);not null"`
	AuthenticatedAt time.Time  `gorm:"not null"`
	ExpiresAt       *time.Time `gorm:"index"`
	IsActive        bool       `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the database table name for AccountingAuth.
func (AccountingAuth) TableName() string { return "accounting_telegram_auth" }

// Valid reports whether the login is active and has not expired at now.
func (a AccountingAuth) Valid(now time.Time) bool {
	return a.IsActive && (a.ExpiresAt == nil || now.Before(*a.ExpiresAt))
}

// AccountingCategory groups transactions in reports.
type AccountingCategory struct {
	ID     string `json:"id"      gorm:"type:char(36);primaryKey"`
	NameAR string `json:"name_ar" gorm:"type:varchar(100);not null"`
	NameEN string `json:"name_en" gorm:"type:varchar(100)"`
}

// TableName returns the database table name for AccountingCategory.
func (AccountingCategory) TableName() string { return "accounting_categories" }

// AccountingTransaction is a single income or expense entry.
// TransactionDate is the business day, stored at midnight UTC.
type AccountingTransaction struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Type            string    `json:"type"             gorm:"type:varchar(16);not null;check:type IN ('income','expense')"`
	Amount          float64   `json:"amount"           gorm:"type:numeric(14,2);not null"`
	TransactionDate time.Time `json:"transaction_date" gorm:"not null;index"`
	DescriptionAR   string    `json:"description_ar"   gorm:"type:text"`
	CategoryID      *string   `json:"category_id"      gorm:"type:char(36);index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Category *AccountingCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID;references:ID"`
}

// TableName returns the database table name for AccountingTransaction.
func (AccountingTransaction) TableName() string { return "accounting_transactions" }
