package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	feedbackTokenIssuer = "guidance-llm"
	feedbackTokenType   = "feedback"
)

// FeedbackTokenStore guarda los jti emitidos. Consume es atomico: solo la primera llamada devuelve true.
type FeedbackTokenStore interface {
	Store(ctx context.Context, jti, interactionID string, ttl time.Duration) error
	Consume(ctx context.Context, jti string) (bool, error)
}

type memoryFeedbackTokenStore struct {
	clock Clock
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryFeedbackTokenStore(clock Clock) FeedbackTokenStore {
	return &memoryFeedbackTokenStore{
		clock: clockOrSystem(clock),
		items: make(map[string]time.Time),
	}
}

func (s *memoryFeedbackTokenStore) Store(_ context.Context, jti, _ string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for k, exp := range s.items {
		if now.After(exp) {
			delete(s.items, k)
		}
	}
	s.items[jti] = now.Add(ttl)
	return nil
}

func (s *memoryFeedbackTokenStore) Consume(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	delete(s.items, jti)
	return !s.clock.Now().After(exp), nil
}

type redisTokenClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

type redisFeedbackTokenStore struct {
	client redisTokenClient
	prefix string
}

func NewRedisFeedbackTokenStore(client *redis.Client) FeedbackTokenStore {
	if client == nil {
		return nil
	}
	return &redisFeedbackTokenStore{client: client, prefix: "guidance:feedback:"}
}

func (s *redisFeedbackTokenStore) Store(ctx context.Context, jti, interactionID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+jti, interactionID, ttl).Err()
}

func (s *redisFeedbackTokenStore) Consume(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	err := s.client.GetDel(ctx, s.prefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type FeedbackClaims struct {
	InteractionID string `json:"iid"`
	UserID        string `json:"uid"`
	TokenType     string `json:"typ"`
	jwt.RegisteredClaims
}

// FeedbackTokenService emite tokens opacos de un solo uso ligados a una interaccion.
type FeedbackTokenService struct {
	secret []byte
	ttl    time.Duration
	store  FeedbackTokenStore
	clock  Clock
}

func NewFeedbackTokenService(secret string, ttl time.Duration, store FeedbackTokenStore, clock Clock) *FeedbackTokenService {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	clock = clockOrSystem(clock)
	if store == nil {
		store = NewMemoryFeedbackTokenStore(clock)
	}
	return &FeedbackTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
		clock:  clock,
	}
}

func (s *FeedbackTokenService) Issue(ctx context.Context, interactionID, userID string) (string, error) {
	if len(s.secret) == 0 || strings.TrimSpace(interactionID) == "" {
		return "", ErrFeedbackTokenInvalid
	}
	now := s.clock.Now()
	jti := uuid.NewString()
	claims := FeedbackClaims{
		InteractionID: interactionID,
		UserID:        userID,
		TokenType:     feedbackTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    feedbackTokenIssuer,
			Subject:   interactionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign feedback token: %w", err)
	}
	if err := s.store.Store(ctx, jti, interactionID, s.ttl); err != nil {
		return "", fmt.Errorf("store feedback token: %w", err)
	}
	return signed, nil
}

// Redeem valida y consume el token. Un segundo Redeem del mismo token devuelve ErrFeedbackTokenUsed.
func (s *FeedbackTokenService) Redeem(ctx context.Context, token string) (FeedbackClaims, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return FeedbackClaims{}, err
	}
	if err := s.Consume(ctx, claims); err != nil {
		return FeedbackClaims{}, err
	}
	return claims, nil
}

// Verify valida firma, emisor y expiracion sin consumir el token.
func (s *FeedbackTokenService) Verify(token string) (FeedbackClaims, error) {
	return s.parse(token)
}

// Consume marca el jti como usado. Devuelve ErrFeedbackTokenUsed si ya no estaba disponible.
func (s *FeedbackTokenService) Consume(ctx context.Context, claims FeedbackClaims) error {
	ok, err := s.store.Consume(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("consume feedback token: %w", err)
	}
	if !ok {
		return ErrFeedbackTokenUsed
	}
	return nil
}

// Release devuelve un jti consumido al store con el TTL que le quedaba.
func (s *FeedbackTokenService) Release(ctx context.Context, claims FeedbackClaims) error {
	if claims.ExpiresAt == nil {
		return ErrFeedbackTokenInvalid
	}
	remaining := claims.ExpiresAt.Time.Sub(s.clock.Now())
	if remaining <= 0 {
		return ErrFeedbackTokenExpired
	}
	if err := s.store.Store(ctx, claims.ID, claims.InteractionID, remaining); err != nil {
		return fmt.Errorf("release feedback token: %w", err)
	}
	return nil
}

func (s *FeedbackTokenService) parse(token string) (FeedbackClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(token) == "" {
		return FeedbackClaims{}, ErrFeedbackTokenInvalid
	}
	var claims FeedbackClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(feedbackTokenIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return FeedbackClaims{}, ErrFeedbackTokenExpired
		}
		return FeedbackClaims{}, ErrFeedbackTokenInvalid
	}
	if claims.TokenType != feedbackTokenType || claims.ID == "" || claims.InteractionID == "" || claims.Subject != claims.InteractionID {
		return FeedbackClaims{}, ErrFeedbackTokenInvalid
	}
	return claims, nil
}
