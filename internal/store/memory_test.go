package store

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-config-service/internal/model"
)

func writeDoc(t *testing.T, s DocumentStore, tenantID string, kind model.DocumentKind, content string, expected string) string {
	t.Helper()
	rev, err := s.Write(context.Background(), WriteRequest{
		TenantID:         tenantID,
		Kind:             kind,
		Content:          json.RawMessage(content),
		ExpectedRevision: expected,
		Author:           "tester@example.com",
		Message:          "test write",
	})
	require.NoError(t, err)
	return rev
}

func TestFirstWriteSemantics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev := writeDoc(t, s, "acme", model.KindBranding, `{"company_name":"Acme"}`, RevisionNone)
	assert.NotEmpty(t, rev)

	// Second first-write must fail, the document already exists.
	_, err := s.Write(ctx, WriteRequest{
		TenantID:         "acme",
		Kind:             model.KindBranding,
		Content:          json.RawMessage(`{}`),
		ExpectedRevision: RevisionNone,
	})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)

	// An expected revision against a missing document is NotFound, not a
	// conflict.
	_, err = s.Write(ctx, WriteRequest{
		TenantID:         "acme",
		Kind:             model.KindKeywords,
		Content:          json.RawMessage(`{}`),
		ExpectedRevision: rev,
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReadReturnsHead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev1 := writeDoc(t, s, "acme", model.KindBranding, `{"v":1}`, RevisionNone)
	rev2 := writeDoc(t, s, "acme", model.KindBranding, `{"v":2}`, rev1)

	doc, err := s.Read(ctx, "acme", model.KindBranding)
	require.NoError(t, err)
	assert.Equal(t, rev2, doc.RevisionID)
	assert.JSONEq(t, `{"v":2}`, string(doc.Content))

	_, err = s.Read(ctx, "ghost", model.KindBranding)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStaleRevisionConflicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev1 := writeDoc(t, s, "acme", model.KindKeywords, `{"v":1}`, RevisionNone)
	writeDoc(t, s, "acme", model.KindKeywords, `{"v":2}`, rev1)

	_, err := s.Write(ctx, WriteRequest{
		TenantID:         "acme",
		Kind:             model.KindKeywords,
		Content:          json.RawMessage(`{"v":3}`),
		ExpectedRevision: rev1,
	})
	assert.ErrorIs(t, err, model.ErrConflict)

	// The losing write left no trace.
	metas, err := s.History(ctx, "acme", model.KindKeywords, 0)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestConcurrentWritersOneWins(t *testing.T) {
	s := NewMemoryStore()
	base := writeDoc(t, s, "acme", model.KindFeeds, `{"v":0}`, RevisionNone)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Write(context.Background(), WriteRequest{
				TenantID:         "acme",
				Kind:             model.KindFeeds,
				Content:          json.RawMessage(`{"v":1}`),
				ExpectedRevision: base,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, model.ErrConflict)
		}
	}
	assert.Equal(t, 1, winners)

	metas, err := s.History(context.Background(), "acme", model.KindFeeds, 0)
	require.NoError(t, err)
	assert.Len(t, metas, 2)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev := RevisionNone
	var all []string
	for i := 0; i < 5; i++ {
		rev = writeDoc(t, s, "acme", model.KindProfile, `{"n":`+strconv.Itoa(i)+`}`, rev)
		all = append(all, rev)
	}

	metas, err := s.History(ctx, "acme", model.KindProfile, 3)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, all[4], metas[0].RevisionID)
	assert.Equal(t, all[3], metas[1].RevisionID)
	assert.Equal(t, all[2], metas[2].RevisionID)
}

func TestReadAtReturnsHistoricalContent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rev1 := writeDoc(t, s, "acme", model.KindBranding, `{"v":1}`, RevisionNone)
	writeDoc(t, s, "acme", model.KindBranding, `{"v":2}`, rev1)

	content, err := s.ReadAt(ctx, "acme", model.KindBranding, rev1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(content))

	_, err = s.ReadAt(ctx, "acme", model.KindBranding, "no-such-revision")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListTenantsByPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	writeDoc(t, s, "acme", model.KindBranding, `{}`, RevisionNone)
	writeDoc(t, s, "acme", model.KindProfile, `{}`, RevisionNone)
	writeDoc(t, s, "apex", model.KindBranding, `{}`, RevisionNone)
	writeDoc(t, s, "zen", model.KindBranding, `{}`, RevisionNone)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "apex", "zen"}, all)

	some, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "apex"}, some)
}

func TestRemoveDeletesDocumentAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	writeDoc(t, s, "acme", model.KindBranding, `{}`, RevisionNone)
	require.NoError(t, s.Remove(ctx, "acme", model.KindBranding))

	_, err := s.Read(ctx, "acme", model.KindBranding)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, s.Remove(ctx, "acme", model.KindBranding), model.ErrNotFound)
}
