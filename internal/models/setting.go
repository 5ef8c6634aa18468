package models

import (
	"time"
)

// SystemSetting is a single key/value configuration row
type SystemSetting struct {
	ID          int64     `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Value       string    `json:"value" db:"value"`
	Description string    `json:"description" db:"description"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// PortalSetting holds captive portal branding and terms
type PortalSetting struct {
	ID        int64     `json:"id" db:"id"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	BusinessName   string `json:"businessName" db:"business_name"`
	WelcomeMessage string `json:"welcomeMessage" db:"welcome_message"`
	PrimaryColor   string `json:"primaryColor" db:"primary_color"`
	LogoURL        string `json:"logoUrl" db:"logo_url"`

	TermsRequired bool   `json:"termsRequired" db:"terms_required"`
	TermsContent  string `json:"termsContent" db:"terms_content"`
}
