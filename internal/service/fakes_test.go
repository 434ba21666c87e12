package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/engine"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeEngine struct {
	name   string
	result engine.Result
	err    error
	panics bool
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Run(ctx context.Context, in engine.Input) (engine.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.panics {
		panic("engine exploded")
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return engine.Result{}, ctx.Err()
		}
	}
	return e.result, e.err
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeInteractionStore struct {
	mu          sync.Mutex
	items       map[string]domain.Interaction
	created     int
	saved       int
	createErr   error
	getErr      error
	listErr     error
	feedbackErr error
}

func newFakeInteractionStore(items ...domain.Interaction) *fakeInteractionStore {
	s := &fakeInteractionStore{items: map[string]domain.Interaction{}}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *fakeInteractionStore) Create(_ context.Context, it domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created++
	if _, ok := s.items[it.ID]; !ok {
		s.items[it.ID] = it
	}
	return nil
}

func (s *fakeInteractionStore) SaveResponse(_ context.Context, it domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
	prev, ok := s.items[it.ID]
	if !ok {
		s.items[it.ID] = it
		return nil
	}
	// como el upsert de Postgres: solo completa la respuesta, los snapshots quedan
	if prev.Response == nil {
		prev.Response = it.Response
		prev.ConfidenceScore = it.ConfidenceScore
		s.items[it.ID] = prev
	}
	return nil
}

func (s *fakeInteractionStore) GetByID(_ context.Context, id string) (domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.Interaction{}, s.getErr
	}
	it, ok := s.items[id]
	if !ok {
		return domain.Interaction{}, pgx.ErrNoRows
	}
	return it, nil
}

func (s *fakeInteractionStore) SaveFeedback(_ context.Context, id string, fb domain.Feedback, confidence float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedbackErr != nil {
		return false, s.feedbackErr
	}
	it, ok := s.items[id]
	if !ok || it.Feedback != nil {
		return false, nil
	}
	it.Feedback = &fb
	it.ConfidenceScore = confidence
	s.items[id] = it
	return true, nil
}

func (s *fakeInteractionStore) ListWithFeedbackSince(_ context.Context, since time.Time) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Interaction
	for _, it := range s.items {
		if it.Feedback != nil && !it.Feedback.SubmittedAt.Before(since) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeInteractionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *fakeInteractionStore) get(id string) (domain.Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	return it, ok
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]domain.PersonalityProfile
	getErr   error
	saveErr  error
	recsFor  []string
}

func newFakeProfileStore(profiles ...domain.PersonalityProfile) *fakeProfileStore {
	s := &fakeProfileStore{profiles: map[string]domain.PersonalityProfile{}}
	for _, p := range profiles {
		s.profiles[p.UserID] = p
	}
	return s
}

func (s *fakeProfileStore) GetByUserID(_ context.Context, userID string) (domain.PersonalityProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return domain.PersonalityProfile{}, s.getErr
	}
	p, ok := s.profiles[userID]
	if !ok {
		return domain.PersonalityProfile{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *fakeProfileStore) Upsert(_ context.Context, p domain.PersonalityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if prev, ok := s.profiles[p.UserID]; ok {
		p.Recommendations = prev.Recommendations
	}
	s.profiles[p.UserID] = p
	return nil
}

func (s *fakeProfileStore) SaveRecommendations(_ context.Context, p domain.PersonalityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.recsFor = append(s.recsFor, p.UserID)
	prev, ok := s.profiles[p.UserID]
	if !ok {
		prev = p
	}
	prev.Recommendations = p.Recommendations
	s.profiles[p.UserID] = prev
	return nil
}

type fakeTemplateWeights struct {
	mu      sync.Mutex
	weights map[string]float64
	failFor map[string]bool
}

func (f *fakeTemplateWeights) UpdateWeight(_ context.Context, id string, weight float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return errors.New("update failed")
	}
	if f.weights == nil {
		f.weights = map[string]float64{}
	}
	f.weights[id] = weight
	return nil
}

type fakeKnowledge struct {
	docs []domain.ScoredDocument
	err  error
}

func (f fakeKnowledge) SearchText(_ context.Context, _ string, _ int) ([]domain.ScoredDocument, error) {
	return f.docs, f.err
}

type handlerFunc func(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error)

func (f handlerFunc) Handle(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
	return f(ctx, req)
}
