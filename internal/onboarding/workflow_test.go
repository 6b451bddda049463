package onboarding

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-config-service/internal/access"
	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
)

func validDraft() model.Draft {
	return model.Draft{
		TenantID:        "acme",
		CompanyName:     "Acme Corp",
		ShortName:       "Acme",
		ApplicationName: "Acme Weekly",
		FooterText:      "Acme Corp, 1 Main St",
		FooterURL:       "https://acme.example.com",
		ContactName:     "Jordan Li",
		ContactEmail:    "jordan@acme.example.com",
		Keywords:        []model.KeywordMapping{{Term: "robotics", Category: "Technology"}},
		Feeds:           []model.Feed{{URL: "https://news.example.com/rss", Category: "Technology", Enabled: true}},
	}
}

func newTestWorkflow() (*Workflow, *store.MemoryStore) {
	docs := store.NewMemoryStore()
	return New(docs, store.NewMemorySessionStore(), nil, time.Hour, "https://onboard.example.com"), docs
}

func TestInviteToApproveFlow(t *testing.T) {
	w, docs := newTestWorkflow()
	ctx := context.Background()

	session, link, err := w.Invite(ctx, "Jordan@Acme.Example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StateInvited, session.State)
	assert.Equal(t, "jordan@acme.example.com", session.Email)
	assert.Equal(t, "https://onboard.example.com/onboarding/"+session.Token, link)

	opened, err := w.Open(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, opened.State)

	_, err = w.SaveDraft(ctx, session.Token, validDraft())
	require.NoError(t, err)

	submitted, err := w.Submit(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.StateSubmitted, submitted.State)

	approved, err := w.Approve(ctx, session.Token, "", model.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, approved.State)
	assert.Equal(t, "acme", approved.AssignedTenantID)

	// All six tenant documents exist as first revisions.
	for _, kind := range model.DocumentKinds {
		doc, err := docs.Read(ctx, "acme", kind)
		require.NoError(t, err, "document %s", kind)
		assert.NotEmpty(t, doc.RevisionID)
	}

	var branding model.Branding
	doc, err := docs.Read(ctx, "acme", model.KindBranding)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(doc.Content, &branding))
	assert.Equal(t, "Acme Corp", branding.CompanyName)
	assert.Equal(t, "{name} - Week {week}", branding.NewsletterTitleTemplate)

	// The session email holds the granted tier.
	r := access.NewResolver(docs)
	ok, err := r.Authorize(ctx, "acme", "jordan@acme.example.com", model.PermEditConfig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownTokenIsInvalid(t *testing.T) {
	w, _ := newTestWorkflow()
	_, err := w.Open(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, model.ErrTokenInvalid)
}

func TestLazyExpiry(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	session, _, err := w.Invite(ctx, "late@example.com")
	require.NoError(t, err)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = w.Open(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrTokenExpired)

	// The expired state is visible in the listing too.
	sessions, err := w.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.StateExpired, sessions[0].State)
}

func TestSubmitRejectsIncompleteDraft(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	session, _, err := w.Invite(ctx, "new@example.com")
	require.NoError(t, err)

	draft := validDraft()
	draft.FooterText = ""
	draft.ContactEmail = ""
	_, err = w.SaveDraft(ctx, session.Token, draft)
	require.NoError(t, err)

	_, err = w.Submit(ctx, session.Token)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"footer_text", "contact_email"}, verr.Fields)

	// The session stays in Draft for another attempt.
	loaded, err := w.Open(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, loaded.State)
}

func TestRequestChangesRoundTrip(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	session, _, err := w.Invite(ctx, "new@example.com")
	require.NoError(t, err)
	_, err = w.SaveDraft(ctx, session.Token, validDraft())
	require.NoError(t, err)
	_, err = w.Submit(ctx, session.Token)
	require.NoError(t, err)

	returned, err := w.RequestChanges(ctx, session.Token, "Please fill in the phone number")
	require.NoError(t, err)
	assert.Equal(t, model.StateChangesRequested, returned.State)
	assert.Equal(t, "Please fill in the phone number", returned.ReviewNote)

	// Submitting from ChangesRequested is rejected until reopened.
	_, err = w.Submit(ctx, session.Token)
	assert.ErrorIs(t, err, model.ErrConflict)

	reopened, err := w.Open(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.StateDraft, reopened.State)

	_, err = w.Submit(ctx, session.Token)
	require.NoError(t, err)
}

func TestApproveRequiresSubmitted(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	session, _, err := w.Invite(ctx, "new@example.com")
	require.NoError(t, err)

	_, err = w.Approve(ctx, session.Token, "acme", model.TierBasic)
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestApproveCollisionLeavesNoPartialTenant(t *testing.T) {
	w, docs := newTestWorkflow()
	ctx := context.Background()

	first, err := w.ManualEntry(ctx, "first@example.com", validDraft())
	require.NoError(t, err)
	_, err = w.Approve(ctx, first.Token, "", model.TierPremium)
	require.NoError(t, err)

	second, err := w.ManualEntry(ctx, "second@example.com", validDraft())
	require.NoError(t, err)
	_, err = w.Approve(ctx, second.Token, "", model.TierPremium)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)

	// The losing approval wrote nothing and the winner is intact.
	doc, err := docs.Read(ctx, "acme", model.KindAccessList)
	require.NoError(t, err)
	var list model.AccessList
	require.NoError(t, json.Unmarshal(doc.Content, &list))
	require.Len(t, list.Users, 1)
	assert.Equal(t, "first@example.com", list.Users[0].Email)
}

// failAfterStore passes writes through until n have succeeded, then fails.
type failAfterStore struct {
	store.DocumentStore
	remaining int
}

func (s *failAfterStore) Write(ctx context.Context, req store.WriteRequest) (string, error) {
	if s.remaining <= 0 {
		return "", model.ErrUnavailable
	}
	s.remaining--
	return s.DocumentStore.Write(ctx, req)
}

func TestApproveFailureMidCommitRollsBack(t *testing.T) {
	inner := store.NewMemoryStore()
	docs := &failAfterStore{DocumentStore: inner, remaining: 3}
	w := New(docs, store.NewMemorySessionStore(), nil, time.Hour, "https://onboard.example.com")
	ctx := context.Background()

	session, err := w.ManualEntry(ctx, "new@example.com", validDraft())
	require.NoError(t, err)

	_, err = w.Approve(ctx, session.Token, "", model.TierPremium)
	require.ErrorIs(t, err, model.ErrUnavailable)

	// Compensation removed everything the partial commit wrote.
	tenants, err := inner.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, tenants)

	// The session is still Submitted and approvable once the store
	// recovers.
	docs.remaining = len(model.DocumentKinds)
	approved, err := w.Approve(ctx, session.Token, "", model.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, approved.State)
}

func TestManualEntrySkipsInvitation(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	session, err := w.ManualEntry(ctx, "direct@example.com", validDraft())
	require.NoError(t, err)
	assert.Equal(t, model.StateSubmitted, session.State)

	_, err = w.ManualEntry(ctx, "direct@example.com", model.Draft{TenantID: "x"})
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	w, _ := newTestWorkflow()
	ctx := context.Background()

	_, _, err := w.Invite(ctx, "stale@example.com")
	require.NoError(t, err)

	approvedSession, err := w.ManualEntry(ctx, "keep@example.com", validDraft())
	require.NoError(t, err)
	_, err = w.Approve(ctx, approvedSession.Token, "", model.TierStandard)
	require.NoError(t, err)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	removed, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sessions, err := w.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, model.StateApproved, sessions[0].State)
}
