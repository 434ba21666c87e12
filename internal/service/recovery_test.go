package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"guidance-llm/internal/domain"
	"guidance-llm/internal/engine"
	"guidance-llm/internal/llm"
)

func failingPrimary() GuidanceHandler {
	return handlerFunc(func(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
		return domain.GuidanceResponse{}, &ProviderError{Op: "engines", Err: ErrAllEnginesFailed}
	})
}

func TestRecoveryChainTiers(t *testing.T) {
	req := domain.GuidanceRequest{UserID: "u1", Question: "How do I dock?"}

	tests := []struct {
		name       string
		primary    GuidanceHandler
		fallback   llm.Provider
		knowledge  KnowledgeSearcher
		wantType   string
		wantSource string
		wantMsg    string
	}{
		{
			name:       "tier1 alternative model",
			primary:    failingPrimary(),
			fallback:   &llm.MockProvider{Response: "Align the docking port first."},
			knowledge:  fakeKnowledge{err: errors.New("unused")},
			wantType:   RecoveryAlternativeModel,
			wantSource: SourceRecovery,
			wantMsg:    "Align the docking port first.",
		},
		{
			name: "panic in pipeline goes to tier1",
			primary: handlerFunc(func(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
				panic("nil map")
			}),
			fallback:   &llm.MockProvider{Response: "Alternative answer."},
			wantType:   RecoveryAlternativeModel,
			wantSource: SourceRecovery,
			wantMsg:    "Alternative answer.",
		},
		{
			name:       "tier2 basic lookup",
			primary:    failingPrimary(),
			fallback:   &llm.MockProvider{Err: errors.New("rate limited")},
			knowledge:  fakeKnowledge{docs: []domain.ScoredDocument{{KnowledgeDocument: domain.KnowledgeDocument{Content: "Docking requires alignment. Keep approach slow. Confirm capture. Extra sentence."}}}},
			wantType:   RecoveryBasicVector,
			wantSource: SourceRecovery,
			wantMsg:    "Docking requires alignment. Keep approach slow. Confirm capture.",
		},
		{
			name:       "tier3 static after tier1 and tier2 fail",
			primary:    failingPrimary(),
			fallback:   &llm.MockProvider{Err: errors.New("rate limited")},
			knowledge:  fakeKnowledge{err: errors.New("store down")},
			wantType:   RecoveryStatic,
			wantSource: SourceRecovery,
			wantMsg:    StaticRecoveryMessage,
		},
		{
			name:       "tier3 when knowledge has no match",
			primary:    failingPrimary(),
			fallback:   &llm.MockProvider{Response: "   "},
			knowledge:  fakeKnowledge{},
			wantType:   RecoveryStatic,
			wantSource: SourceRecovery,
			wantMsg:    StaticRecoveryMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewRecoveryChain(RecoveryDeps{
				Primary:   tt.primary,
				Fallback:  tt.fallback,
				Knowledge: tt.knowledge,
				Logger:    zap.NewNop(),
			})
			resp, err := chain.Handle(context.Background(), req)
			if err != nil {
				t.Fatalf("expected recovered response, got %v", err)
			}
			meta := resp.Guidance.Meta
			if meta.RecoveryType != tt.wantType || meta.Source != tt.wantSource {
				t.Fatalf("recovery type %q source %q, want %q %q", meta.RecoveryType, meta.Source, tt.wantType, tt.wantSource)
			}
			if resp.Guidance.Message != tt.wantMsg {
				t.Fatalf("message %q want %q", resp.Guidance.Message, tt.wantMsg)
			}
			if !strings.HasPrefix(meta.CorrelationID, "rcv-") || resp.RequestID == "" {
				t.Fatalf("expected correlation id linked to request id, got %q / %q", meta.CorrelationID, resp.RequestID)
			}
			if !resp.Success {
				t.Fatalf("recovered responses are successful")
			}
		})
	}
}

func TestRecoveryChainEachTierOnce(t *testing.T) {
	fallback := &llm.MockProvider{Err: errors.New("down")}
	chain := NewRecoveryChain(RecoveryDeps{Primary: failingPrimary(), Fallback: fallback, Knowledge: fakeKnowledge{}})
	if _, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", Question: "q?"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if fallback.Calls() != 1 {
		t.Fatalf("tier1 attempted %d times, want 1", fallback.Calls())
	}
}

func TestRecoveryChainExhausted(t *testing.T) {
	chain := NewRecoveryChain(RecoveryDeps{
		Primary: failingPrimary(),
		Static: func(req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
			panic("template missing")
		},
	})
	_, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", Question: "q?"})
	var exhausted *RecoveryExhaustedError
	if !errors.As(err, &exhausted) || exhausted.ErrorID == "" {
		t.Fatalf("expected RecoveryExhaustedError with error id, got %v", err)
	}
}

func TestRecoveryChainPassThrough(t *testing.T) {
	called := false
	primary := handlerFunc(func(ctx context.Context, req domain.GuidanceRequest) (domain.GuidanceResponse, error) {
		called = true
		return domain.GuidanceResponse{Success: true, RequestID: req.RequestID}, nil
	})
	chain := NewRecoveryChain(RecoveryDeps{Primary: primary})

	if _, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1"}); !IsValidationError(err) {
		t.Fatalf("validation errors bypass recovery, got %v", err)
	}
	if called {
		t.Fatalf("primary must not run for invalid requests")
	}

	resp, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", Question: "q?"})
	if err != nil || !called || resp.RequestID == "" {
		t.Fatalf("expected primary response with request id, got %+v %v", resp, err)
	}
}

func TestRecoveryChainPersistsRecoveredInteraction(t *testing.T) {
	store := newFakeInteractionStore()
	tokens := NewFeedbackTokenService("secret", 0, nil, newFakeClock())
	chain := NewRecoveryChain(RecoveryDeps{
		Primary:      failingPrimary(),
		Fallback:     &llm.MockProvider{Response: "Alt."},
		Interactions: store,
		Tokens:       tokens,
	})
	resp, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", Question: "q?"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	stored, ok := store.get(resp.MessageID)
	if !ok || stored.Response == nil || stored.Response.RecoveryType != RecoveryAlternativeModel {
		t.Fatalf("expected recovered interaction persisted, got %+v", stored)
	}
	if _, err := tokens.Redeem(context.Background(), resp.FeedbackToken); err != nil {
		t.Fatalf("recovered response token must be redeemable: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("expected one interaction per request, got %d", store.count())
	}
}

func TestRecoveryChainCompletesPipelineInteraction(t *testing.T) {
	f := newGuidanceFixture(t,
		&fakeEngine{name: engine.NameVector, err: errors.New("store down")},
		&fakeEngine{name: engine.NameGenerative, err: errors.New("provider down")},
	)
	chain := NewRecoveryChain(RecoveryDeps{
		Primary:      f.svc,
		Fallback:     &llm.MockProvider{Response: "Alt."},
		Interactions: f.interactions,
		Tokens:       f.tokens,
	})

	resp, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", SessionID: "s1", Question: "How do I dock?"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Guidance.Meta.RecoveryType != RecoveryAlternativeModel {
		t.Fatalf("expected tier1 recovery, got %q", resp.Guidance.Meta.RecoveryType)
	}
	if f.interactions.count() != 1 {
		t.Fatalf("expected one interaction per request, got %d", f.interactions.count())
	}
	stored, ok := f.interactions.get(resp.MessageID)
	if !ok || stored.Response == nil || stored.Response.RecoveryType != RecoveryAlternativeModel {
		t.Fatalf("expected recovery response on the pipeline interaction, got %+v", stored)
	}
	if stored.UserState.Stage == "" || stored.SessionID != "s1" {
		t.Fatalf("pipeline snapshot lost: %+v", stored)
	}
	if stored.ConfidenceScore != 0.6 {
		t.Fatalf("expected tier1 confidence 0.6, got %v", stored.ConfidenceScore)
	}
}

func TestRecoveryChainStaticResponsePersisted(t *testing.T) {
	store := newFakeInteractionStore()
	chain := NewRecoveryChain(RecoveryDeps{Primary: failingPrimary(), Interactions: store})
	resp, err := chain.Handle(context.Background(), domain.GuidanceRequest{UserID: "u1", Question: "q?"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	stored, ok := store.get(resp.MessageID)
	if !ok || stored.Response == nil || stored.Response.RecoveryType != RecoveryStatic {
		t.Fatalf("expected static response persisted under the message id, got %+v", stored)
	}
}
