package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// DocumentKind names one of the fixed JSON documents a tenant owns.
type DocumentKind string

const (
	KindBranding   DocumentKind = "branding"
	KindKeywords   DocumentKind = "keywords"
	KindFeeds      DocumentKind = "feeds"
	KindProfile    DocumentKind = "profile"
	KindAccessList DocumentKind = "access_list"
	KindUsage      DocumentKind = "usage"
)

// DocumentKinds lists every kind in the order onboarding approval creates
// them. The access list is written last so a half-committed tenant never
// grants access.
var DocumentKinds = []DocumentKind{
	KindBranding, KindKeywords, KindFeeds, KindProfile, KindAccessList, KindUsage,
}

// ParseDocumentKind validates a kind string from a request or CLI argument.
func ParseDocumentKind(s string) (DocumentKind, error) {
	kind := DocumentKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range DocumentKinds {
		if kind == k {
			return k, nil
		}
	}
	return "", &ValidationError{Fields: []string{"kind"}}
}

// Document is the current revision of one named JSON blob scoped to a
// tenant.
type Document struct {
	TenantID   string          `json:"tenant_id"`
	Kind       DocumentKind    `json:"kind"`
	Content    json.RawMessage `json:"content"`
	RevisionID string          `json:"revision_id"`
	Author     string          `json:"author"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RevisionMeta describes one historical revision of a document.
type RevisionMeta struct {
	RevisionID string    `json:"revision_id"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// TenantStatus is the lifecycle flag on a tenant's profile. Tenants are
// never physically deleted.
type TenantStatus string

const (
	StatusPending   TenantStatus = "Pending"
	StatusActive    TenantStatus = "Active"
	StatusInactive  TenantStatus = "Inactive"
	StatusSuspended TenantStatus = "Suspended"
)

// ParseTenantStatus validates a status string.
func ParseTenantStatus(s string) (TenantStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	case "suspended":
		return StatusSuspended, nil
	}
	return "", &ValidationError{Fields: []string{"status"}}
}

// Branding is the tenant's newsletter branding document.
type Branding struct {
	CompanyName             string `json:"company_name"`
	ShortName               string `json:"short_name"`
	ApplicationName         string `json:"application_name"`
	NewsletterTitleTemplate string `json:"newsletter_title_template"`
	FooterText              string `json:"footer_text"`
	FooterURL               string `json:"footer_url"`
	FooterURLText           string `json:"footer_url_text"`
}

// KeywordMapping assigns a search term to a newsletter category.
type KeywordMapping struct {
	Term     string `json:"term"`
	Category string `json:"category"`
}

// Keywords is the tenant's keyword configuration document.
type Keywords struct {
	Mappings []KeywordMapping `json:"mappings"`
}

// Feed is one RSS/news source for a tenant.
type Feed struct {
	URL      string `json:"url"`
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

// Feeds is the tenant's feed configuration document.
type Feeds struct {
	Feeds []Feed `json:"feeds"`
}

// Profile is the tenant's contact and subscription document.
type Profile struct {
	ContactName      string       `json:"contact_name"`
	ContactEmail     string       `json:"contact_email"`
	Phone            string       `json:"phone"`
	SubscriptionTier Tier         `json:"subscription_tier"`
	Status           TenantStatus `json:"status"`
	StartDate        time.Time    `json:"start_date"`
	RenewalDate      time.Time    `json:"renewal_date"`
}

// AccessEntry is one row in a tenant's access list. The permission set is
// derived from Tier at resolve time and never stored.
type AccessEntry struct {
	Email        string    `json:"email"`
	Tier         Tier      `json:"tier"`
	Role         string    `json:"role,omitempty"`
	PasswordHash string    `json:"password_hash,omitempty"`
	AddedAt      time.Time `json:"added_at"`
	AddedBy      string    `json:"added_by"`
}

// AccessList is the tenant's access control document.
type AccessList struct {
	Users []AccessEntry `json:"users"`
}

// Find returns the entry matching email case-insensitively, or nil.
func (l *AccessList) Find(email string) *AccessEntry {
	for i := range l.Users {
		if strings.EqualFold(l.Users[i].Email, email) {
			return &l.Users[i]
		}
	}
	return nil
}

// UsageRecord marks one content item as consumed by a newsletter.
type UsageRecord struct {
	ItemID        string    `json:"item_id"`
	UsedAt        time.Time `json:"used_at"`
	NewsletterRef string    `json:"newsletter_ref"`
}

// UsageLog is the tenant's consumed-items document.
type UsageLog struct {
	Items []UsageRecord `json:"items"`
}

// Contains reports whether an item has already been consumed.
func (u *UsageLog) Contains(itemID string) bool {
	for _, rec := range u.Items {
		if rec.ItemID == itemID {
			return true
		}
	}
	return false
}

// ItemID derives a stable short identifier for a content item from its
// source and identifying fields, matching the original article hashing.
func ItemID(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])[:12]
}
