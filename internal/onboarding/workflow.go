// Package onboarding carries a prospective tenant's configuration from
// invitation through review to commit into the document store.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tenant-config-service/internal/access"
	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
	"tenant-config-service/pkg/logger"
)

// DefaultTTL is the invitation lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

// Workflow is the onboarding state machine. All methods are safe for
// concurrent callers; session and tenant state live entirely in the
// stores.
type Workflow struct {
	docs     store.DocumentStore
	sessions store.SessionStore
	notifier Notifier
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
}

// New builds a workflow. A nil notifier falls back to LogNotifier and a
// non-positive ttl to DefaultTTL.
func New(docs store.DocumentStore, sessions store.SessionStore, notifier Notifier, ttl time.Duration, baseURL string) *Workflow {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Workflow{
		docs:     docs,
		sessions: sessions,
		notifier: notifier,
		ttl:      ttl,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// Invite creates a session in the Invited state and asks the notifier to
// deliver the link. The link is returned either way so an undeliverable
// invitation can be forwarded manually.
func (w *Workflow) Invite(ctx context.Context, email string) (*model.OnboardingSession, string, error) {
	log := logger.FromContext(ctx)
	if !model.ValidEmail(email) {
		return nil, "", &model.ValidationError{Fields: []string{"email"}}
	}

	now := w.now().UTC()
	session := &model.OnboardingSession{
		Token:     uuid.NewString(),
		Email:     strings.ToLower(email),
		State:     model.StateInvited,
		CreatedAt: now,
		ExpiresAt: now.Add(w.ttl),
	}
	if err := w.sessions.Create(ctx, session); err != nil {
		return nil, "", err
	}

	link := fmt.Sprintf("%s/onboarding/%s", w.baseURL, session.Token)
	if err := w.notifier.SendInvitation(ctx, session.Email, link); err != nil {
		// The transition stands; the caller gets the link for manual
		// delivery.
		log.Warn("Invitation send failed",
			zap.String("email", session.Email),
			zap.String("token", session.Token),
			zap.Error(err))
	}
	log.Info("Onboarding invitation created",
		zap.String("email", session.Email),
		zap.String("token", session.Token),
		zap.Time("expires_at", session.ExpiresAt))
	return session, link, nil
}

// Open loads a session by token, applying lazy expiry, and moves Invited
// or ChangesRequested sessions into Draft.
func (w *Workflow) Open(ctx context.Context, token string) (*model.OnboardingSession, error) {
	session, err := w.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.State == model.StateInvited || session.State == model.StateChangesRequested {
		session.State = model.StateDraft
		if err := w.sessions.Update(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// SaveDraft overwrites the session's draft content. Allowed any number of
// times before expiry while the session is editable.
func (w *Workflow) SaveDraft(ctx context.Context, token string, draft model.Draft) (*model.OnboardingSession, error) {
	session, err := w.load(ctx, token)
	if err != nil {
		return nil, err
	}
	switch session.State {
	case model.StateInvited, model.StateChangesRequested:
		session.State = model.StateDraft
	case model.StateDraft:
	default:
		return nil, fmt.Errorf("session %s in state %s is not editable: %w", token, session.State, model.ErrConflict)
	}
	if err := session.SetDraft(draft); err != nil {
		return nil, err
	}
	if err := w.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Submit moves a Draft session to Submitted once the minimum required
// fields are present.
func (w *Workflow) Submit(ctx context.Context, token string) (*model.OnboardingSession, error) {
	session, err := w.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.State != model.StateDraft {
		return nil, fmt.Errorf("session %s in state %s cannot be submitted: %w", token, session.State, model.ErrConflict)
	}
	draft, err := session.Draft()
	if err != nil {
		return nil, err
	}
	if err := model.ValidateDraftForSubmit(&draft); err != nil {
		return nil, err
	}
	session.State = model.StateSubmitted
	if err := w.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	w.notify(ctx, session, "")
	logger.FromContext(ctx).Info("Onboarding draft submitted",
		zap.String("token", session.Token),
		zap.String("tenant_id", draft.TenantID))
	return session, nil
}

// RequestChanges sends a Submitted session back to the prospective tenant
// with a review note. The next Open returns it to Draft.
func (w *Workflow) RequestChanges(ctx context.Context, token, note string) (*model.OnboardingSession, error) {
	session, err := w.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.State != model.StateSubmitted {
		return nil, fmt.Errorf("session %s in state %s cannot be returned for changes: %w", token, session.State, model.ErrConflict)
	}
	session.State = model.StateChangesRequested
	session.ReviewNote = note
	if err := w.sessions.Update(ctx, session); err != nil {
		return nil, err
	}
	w.notify(ctx, session, note)
	return session, nil
}

// ManualEntry constructs a Submitted session directly for administrator
// data entry, skipping Invited and Draft. It then follows the same
// approval path as a self-serve submission.
func (w *Workflow) ManualEntry(ctx context.Context, email string, draft model.Draft) (*model.OnboardingSession, error) {
	if !model.ValidEmail(email) {
		return nil, &model.ValidationError{Fields: []string{"email"}}
	}
	if err := model.ValidateDraftForSubmit(&draft); err != nil {
		return nil, err
	}
	now := w.now().UTC()
	session := &model.OnboardingSession{
		Token:     uuid.NewString(),
		Email:     strings.ToLower(email),
		State:     model.StateSubmitted,
		CreatedAt: now,
		ExpiresAt: now.Add(w.ttl),
	}
	if err := session.SetDraft(draft); err != nil {
		return nil, err
	}
	if err := w.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Approve commits a Submitted session into the document store: it creates
// the tenant's documents in a fixed order and seeds the access list with
// the session's email at the chosen tier. The backing store has no
// multi-document transaction, so a failed later write triggers
// compensating deletes of the documents already written; if compensation
// itself fails the error is logged with full context for manual cleanup.
func (w *Workflow) Approve(ctx context.Context, token, tenantID string, tier model.Tier) (*model.OnboardingSession, error) {
	log := logger.FromContext(ctx)

	session, err := w.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.State != model.StateSubmitted {
		return nil, fmt.Errorf("session %s in state %s cannot be approved: %w", token, session.State, model.ErrConflict)
	}
	draft, err := session.Draft()
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		tenantID = draft.TenantID
	}
	if !model.ValidTenantID(tenantID) {
		return nil, &model.ValidationError{Fields: []string{"tenant_id"}}
	}
	if tier == "" {
		tier = model.TierPremium
	}

	// Uniqueness check before committing. A racing creator is still caught
	// by the first-write semantics below.
	existing, err := w.docs.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, id := range existing {
		if id == tenantID {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, model.ErrAlreadyExists)
		}
	}

	docs, err := w.buildDocuments(&draft, session.Email, tier)
	if err != nil {
		return nil, err
	}

	author := "onboarding"
	message := fmt.Sprintf("Onboarding: create tenant %s", tenantID)
	var written []model.DocumentKind
	for _, kind := range model.DocumentKinds {
		content, ok := docs[kind]
		if !ok {
			continue
		}
		_, err := w.docs.Write(ctx, store.WriteRequest{
			TenantID:         tenantID,
			Kind:             kind,
			Content:          content,
			ExpectedRevision: store.RevisionNone,
			Author:           author,
			Message:          message,
		})
		if err != nil {
			w.compensate(ctx, tenantID, written)
			if errors.Is(err, model.ErrAlreadyExists) {
				return nil, fmt.Errorf("tenant %s collided during commit: %w", tenantID, model.ErrConflict)
			}
			return nil, err
		}
		written = append(written, kind)
	}

	session.State = model.StateApproved
	session.AssignedTenantID = tenantID
	if err := w.sessions.Update(ctx, session); err != nil {
		w.compensate(ctx, tenantID, written)
		return nil, err
	}
	w.notify(ctx, session, "")
	log.Info("Onboarding session approved",
		zap.String("token", session.Token),
		zap.String("tenant_id", tenantID),
		zap.String("tier", string(tier)))
	return session, nil
}

// ListSessions returns every stored session with lazy expiry applied to
// the reported state.
func (w *Workflow) ListSessions(ctx context.Context) ([]model.OnboardingSession, error) {
	sessions, err := w.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	now := w.now().UTC()
	for i := range sessions {
		if !sessions[i].State.Terminal() && sessions[i].ExpiredAt(now) {
			sessions[i].State = model.StateExpired
		}
	}
	return sessions, nil
}

// Sweep deletes expired sessions to reclaim storage. Correctness never
// depends on it; expiry is evaluated lazily on every read.
func (w *Workflow) Sweep(ctx context.Context) (int, error) {
	sessions, err := w.sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	now := w.now().UTC()
	removed := 0
	for i := range sessions {
		if sessions[i].State == model.StateApproved || !sessions[i].ExpiredAt(now) {
			continue
		}
		if err := w.sessions.Delete(ctx, sessions[i].Token); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// load fetches a session and applies lazy expiry: a session past its
// expires_at reads as Expired regardless of its stored state.
func (w *Workflow) load(ctx context.Context, token string) (*model.OnboardingSession, error) {
	session, err := w.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.State == model.StateApproved {
		return session, nil
	}
	if session.ExpiredAt(w.now().UTC()) {
		if session.State != model.StateExpired {
			session.State = model.StateExpired
			if err := w.sessions.Update(ctx, session); err != nil {
				logger.FromContext(ctx).Warn("Failed to persist lazy expiry",
					zap.String("token", token), zap.Error(err))
			}
		}
		return nil, fmt.Errorf("session %s expired at %s: %w", token, session.ExpiresAt.Format(time.RFC3339), model.ErrTokenExpired)
	}
	return session, nil
}

// buildDocuments materializes the tenant documents from the draft in the
// fixed approval order.
func (w *Workflow) buildDocuments(draft *model.Draft, email string, tier model.Tier) (map[model.DocumentKind]json.RawMessage, error) {
	now := w.now().UTC()

	hash, err := bcrypt.GenerateFromPassword([]byte(access.DefaultInitialPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	titleTemplate := draft.NewsletterTitleTemplate
	if titleTemplate == "" {
		titleTemplate = "{name} - Week {week}"
	}

	parts := map[model.DocumentKind]any{
		model.KindBranding: model.Branding{
			CompanyName:             draft.CompanyName,
			ShortName:               draft.ShortName,
			ApplicationName:         draft.ApplicationName,
			NewsletterTitleTemplate: titleTemplate,
			FooterText:              draft.FooterText,
			FooterURL:               draft.FooterURL,
			FooterURLText:           draft.FooterURLText,
		},
		model.KindKeywords: model.Keywords{Mappings: draft.Keywords},
		model.KindFeeds:    model.Feeds{Feeds: draft.Feeds},
		model.KindProfile: model.Profile{
			ContactName:      draft.ContactName,
			ContactEmail:     draft.ContactEmail,
			Phone:            draft.Phone,
			SubscriptionTier: tier,
			Status:           model.StatusActive,
			StartDate:        now,
			RenewalDate:      now.AddDate(1, 0, 0),
		},
		model.KindAccessList: model.AccessList{
			Users: []model.AccessEntry{{
				Email:        strings.ToLower(email),
				Tier:         tier,
				Role:         "admin",
				PasswordHash: string(hash),
				AddedAt:      now,
				AddedBy:      "onboarding",
			}},
		},
		model.KindUsage: model.UsageLog{},
	}

	docs := make(map[model.DocumentKind]json.RawMessage, len(parts))
	for kind, v := range parts {
		content, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s document: %w", kind, err)
		}
		docs[kind] = content
	}
	return docs, nil
}

// compensate rolls back the documents already written by a failed
// approval so no partial tenant is left behind.
func (w *Workflow) compensate(ctx context.Context, tenantID string, written []model.DocumentKind) {
	log := logger.FromContext(ctx)
	for _, kind := range written {
		if err := w.docs.Remove(ctx, tenantID, kind); err != nil {
			log.Error("Compensating delete failed, manual cleanup required",
				zap.String("tenant_id", tenantID),
				zap.String("kind", string(kind)),
				zap.Strings("written", kindsToStrings(written)),
				zap.Error(err))
		}
	}
}

func (w *Workflow) notify(ctx context.Context, session *model.OnboardingSession, note string) {
	if err := w.notifier.SendStatusChange(ctx, session.Email, session.State, note); err != nil {
		logger.FromContext(ctx).Warn("Status change send failed",
			zap.String("email", session.Email),
			zap.String("state", string(session.State)),
			zap.Error(err))
	}
}

func kindsToStrings(kinds []model.DocumentKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
