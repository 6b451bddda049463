// Package usage guarantees at-most-once inclusion of content items across
// newsletter generations. Usage lives in the tenant's usage document and
// mutates through the same versioned write path as every other document,
// so an all-or-nothing mark is a single optimistic write.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tenant-config-service/internal/model"
	"tenant-config-service/internal/store"
	"tenant-config-service/pkg/logger"
)

// Tracker marks content items as consumed per tenant.
type Tracker struct {
	docs store.DocumentStore
}

// New returns a tracker over the given document store.
func New(docs store.DocumentStore) *Tracker {
	return &Tracker{docs: docs}
}

// IsUsed reports whether the item has been consumed by any newsletter of
// the tenant. A missing usage document means nothing has been consumed.
func (t *Tracker) IsUsed(ctx context.Context, tenantID, itemID string) (bool, error) {
	log, _, err := t.loadLog(ctx, tenantID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return log.Contains(itemID), nil
}

// MarkUsed records a single item. Fails with AlreadyUsed if a record
// already exists for the item.
func (t *Tracker) MarkUsed(ctx context.Context, tenantID, itemID, newsletterRef string) (*model.UsageRecord, error) {
	records, err := t.MarkManyUsed(ctx, tenantID, []string{itemID}, newsletterRef)
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// MarkManyUsed records the whole selection set of a newsletter atomically:
// either every item is marked or none is. The check runs at newsletter
// commit, so selecting and abandoning an item never consumes it.
func (t *Tracker) MarkManyUsed(ctx context.Context, tenantID string, itemIDs []string, newsletterRef string) ([]model.UsageRecord, error) {
	if len(itemIDs) == 0 {
		return nil, &model.ValidationError{Fields: []string{"item_ids"}}
	}
	// A selection set naming the same item twice would otherwise produce
	// two records for one (tenant, item) pair.
	itemIDs = dedupeItems(itemIDs)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		usageLog, revision, err := t.loadLog(ctx, tenantID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		if usageLog == nil {
			usageLog = &model.UsageLog{}
			revision = store.RevisionNone
		}

		for _, itemID := range itemIDs {
			if usageLog.Contains(itemID) {
				return nil, fmt.Errorf("item %s on tenant %s: %w", itemID, tenantID, model.ErrAlreadyUsed)
			}
		}

		now := time.Now().UTC()
		records := make([]model.UsageRecord, 0, len(itemIDs))
		for _, itemID := range itemIDs {
			records = append(records, model.UsageRecord{
				ItemID:        itemID,
				UsedAt:        now,
				NewsletterRef: newsletterRef,
			})
		}
		usageLog.Items = append(usageLog.Items, records...)

		content, err := json.Marshal(usageLog)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: encode usage log: %w", tenantID, err)
		}
		_, err = t.docs.Write(ctx, store.WriteRequest{
			TenantID:         tenantID,
			Kind:             model.KindUsage,
			Content:          content,
			ExpectedRevision: revision,
			Author:           "newsletter",
			Message:          fmt.Sprintf("Mark %d items used by %s", len(itemIDs), newsletterRef),
		})
		if err == nil {
			return records, nil
		}
		// A concurrent newsletter commit moved the revision; re-read and
		// re-check the whole set once.
		if !errors.Is(err, model.ErrConflict) && !errors.Is(err, model.ErrAlreadyExists) {
			return nil, err
		}
		lastErr = err
		logger.FromContext(ctx).Warn("Usage write conflicted, re-checking selection",
			zap.String("tenant_id", tenantID),
			zap.String("newsletter_ref", newsletterRef))
	}
	return nil, lastErr
}

func dedupeItems(itemIDs []string) []string {
	seen := make(map[string]struct{}, len(itemIDs))
	out := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (t *Tracker) loadLog(ctx context.Context, tenantID string) (*model.UsageLog, string, error) {
	doc, err := t.docs.Read(ctx, tenantID, model.KindUsage)
	if err != nil {
		return nil, "", err
	}
	var usageLog model.UsageLog
	if err := json.Unmarshal(doc.Content, &usageLog); err != nil {
		return nil, "", fmt.Errorf("tenant %s: decode usage log: %w", tenantID, err)
	}
	return &usageLog, doc.RevisionID, nil
}
