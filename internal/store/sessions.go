package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"tenant-config-service/internal/model"
)

// GormSessionStore persists onboarding sessions in the sessions table.
type GormSessionStore struct {
	db *gorm.DB
}

// NewGormSessionStore wraps an initialized gorm connection.
func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: db}
}

func (s *GormSessionStore) Create(ctx context.Context, session *model.OnboardingSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *GormSessionStore) Get(ctx context.Context, token string) (*model.OnboardingSession, error) {
	var session model.OnboardingSession
	result := s.db.WithContext(ctx).Where("token = ?", token).First(&session)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %s: %w", token, model.ErrTokenInvalid)
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &session, nil
}

func (s *GormSessionStore) Update(ctx context.Context, session *model.OnboardingSession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

func (s *GormSessionStore) List(ctx context.Context) ([]model.OnboardingSession, error) {
	var sessions []model.OnboardingSession
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (s *GormSessionStore) Delete(ctx context.Context, token string) error {
	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&model.OnboardingSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", token, model.ErrTokenInvalid)
	}
	return nil
}

// MemorySessionStore keeps sessions in process memory for tests and the
// memory store driver.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.OnboardingSession
}

// NewMemorySessionStore returns an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]model.OnboardingSession)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *model.OnboardingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; ok {
		return fmt.Errorf("session %s: %w", session.Token, model.ErrAlreadyExists)
	}
	s.sessions[session.Token] = *session
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, token string) (*model.OnboardingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", token, model.ErrTokenInvalid)
	}
	return &session, nil
}

func (s *MemorySessionStore) Update(ctx context.Context, session *model.OnboardingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.Token]; !ok {
		return fmt.Errorf("session %s: %w", session.Token, model.ErrTokenInvalid)
	}
	s.sessions[session.Token] = *session
	return nil
}

func (s *MemorySessionStore) List(ctx context.Context) ([]model.OnboardingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]model.OnboardingSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return fmt.Errorf("session %s: %w", token, model.ErrTokenInvalid)
	}
	delete(s.sessions, token)
	return nil
}
