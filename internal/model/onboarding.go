package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SessionState is one state of the onboarding state machine.
type SessionState string

const (
	StateInvited          SessionState = "invited"
	StateDraft            SessionState = "draft"
	StateSubmitted        SessionState = "submitted"
	StateChangesRequested SessionState = "changes_requested"
	StateApproved         SessionState = "approved"
	StateExpired          SessionState = "expired"
)

// Terminal reports whether the state accepts no further transitions.
func (s SessionState) Terminal() bool {
	return s == StateApproved || s == StateExpired
}

// Draft is the partially filled tenant configuration accumulated during
// onboarding. Saving a draft overwrites the previous one; intermediate
// drafts are not versioned.
type Draft struct {
	TenantID                string           `json:"tenant_id"`
	CompanyName             string           `json:"company_name"`
	ShortName               string           `json:"short_name"`
	ApplicationName         string           `json:"application_name"`
	NewsletterTitleTemplate string           `json:"newsletter_title_template"`
	FooterText              string           `json:"footer_text"`
	FooterURL               string           `json:"footer_url" validate:"omitempty,url"`
	FooterURLText           string           `json:"footer_url_text"`
	ContactName             string           `json:"contact_name"`
	ContactEmail            string           `json:"contact_email"`
	Phone                   string           `json:"phone"`
	SubscriptionTier        string           `json:"subscription_tier"`
	Keywords                []KeywordMapping `json:"keywords,omitempty"`
	Feeds                   []Feed           `json:"feeds,omitempty"`
}

// OnboardingSession is a token-addressed draft tenant configuration moving
// through the onboarding state machine.
type OnboardingSession struct {
	ID               uint           `json:"-" gorm:"primaryKey"`
	Token            string         `json:"token" gorm:"type:varchar(36);uniqueIndex"`
	Email            string         `json:"email" gorm:"type:varchar(100);index"`
	State            SessionState   `json:"state" gorm:"type:varchar(20);index"`
	DraftContent     string         `json:"-" gorm:"type:jsonb"`
	ReviewNote       string         `json:"review_note,omitempty" gorm:"type:text"`
	AssignedTenantID string         `json:"assigned_tenant_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// ExpiredAt reports whether the session has passed its expiry at the given
// instant. Expiry is evaluated lazily on every read regardless of the
// stored state.
func (s *OnboardingSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Draft decodes the session's draft content. An empty draft is valid.
func (s *OnboardingSession) Draft() (Draft, error) {
	var d Draft
	if s.DraftContent == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(s.DraftContent), &d); err != nil {
		return d, fmt.Errorf("session %s: decode draft: %w", s.Token, err)
	}
	return d, nil
}

// SetDraft encodes and stores the draft content.
func (s *OnboardingSession) SetDraft(d Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("session %s: encode draft: %w", s.Token, err)
	}
	s.DraftContent = string(raw)
	return nil
}
