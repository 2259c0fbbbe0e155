package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/utils"
)

// In-memory stores mirroring the conditional-update semantics of the Mongo
// implementations.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.AuthSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.AuthSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, phone, sessionType string, data models.SessionData) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	s := &models.AuthSession{
		SessionID:      utils.RandomHex(20),
		Phone:          phone,
		Type:           sessionType,
		Code:           utils.GenerateCode(6),
		ExpiresAt:      now.Add(models.CodeSessionTTL),
		MaxAttempts:    models.DefaultMaxAttempts,
		UserData:       data,
		LastCodeSentAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.sessions[s.SessionID] = s
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) CreatePasswordResetAfterAutoLogin(_ context.Context, userID primitive.ObjectID, phone string) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	s := &models.AuthSession{
		SessionID:      utils.RandomHex(32),
		Phone:          phone,
		Type:           models.SessionPasswordResetAfterAutoLogin,
		ExpiresAt:      now.Add(models.AutoLoginResetSessionTTL),
		MaxAttempts:    models.AutoLoginResetMaxAttempts,
		UserData:       models.SessionData{UserID: userID},
		LastCodeSentAt: now,
		Verified:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.sessions[s.SessionID] = s
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) GetActive(_ context.Context, sessionID string) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindMostRecentActive(_ context.Context, phone, sessionType string) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.AuthSession
	for _, s := range r.sessions {
		if s.Phone != phone || s.Type != sessionType || !s.ExpiresAt.After(time.Now()) {
			continue
		}
		if best == nil || s.LastCodeSentAt.After(best.LastCodeSentAt) {
			best = s
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *fakeSessionRepo) RotateCode(_ context.Context, sessionID string, data *models.SessionData, notSentSince time.Time) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.ExpiresAt.After(time.Now()) ||
		s.Type == models.SessionPasswordResetAfterAutoLogin ||
		s.LastCodeSentAt.After(notSentSince) {
		return nil, repository.ErrNotFound
	}
	s.Code = utils.GenerateCode(6)
	s.LastCodeSentAt = time.Now()
	if data != nil {
		s.UserData = *data
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) IncrementAttempts(_ context.Context, sessionID string) (*models.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrNotFound
	}
	s.Attempts++
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) ConsumeSingleUse(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.ExpiresAt.After(time.Now()) || s.Attempts >= s.MaxAttempts {
		return repository.ErrNotFound
	}
	s.Attempts++
	return nil
}

func (r *fakeSessionRepo) MarkVerified(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.Verified = true
	}
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// code returns the stored plaintext code for assertions.
func (r *fakeSessionRepo) code(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s.Code
	}
	return ""
}

// expire moves the session's deadline into the past.
func (r *fakeSessionRepo) expire(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.ExpiresAt = time.Now().Add(-time.Second)
	}
}

// backdate shifts lastCodeSentAt into the past to step over the cooldown.
func (r *fakeSessionRepo) backdate(sessionID string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.LastCodeSentAt = s.LastCodeSentAt.Add(-d)
	}
}

func (r *fakeSessionRepo) has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[sessionID]
	return ok
}

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens []*models.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{}
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, userID primitive.ObjectID, token string, expiresAt time.Time, userAgent, ipAddress string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &models.RefreshToken{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	r.tokens = append(r.tokens, t)
	cp := *t
	return &cp, nil
}

func (r *fakeRefreshTokenRepo) FindActive(_ context.Context, userID primitive.ObjectID, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && t.Token == token && !t.IsRevoked && t.ExpiresAt.After(time.Now()) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRefreshTokenRepo) RevokeActive(_ context.Context, userID primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && t.Token == token && !t.IsRevoked && t.ExpiresAt.After(time.Now()) {
			t.IsRevoked = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRefreshTokenRepo) RevokeAllForUser(_ context.Context, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllExceptCurrent(_ context.Context, userID primitive.ObjectID, currentToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keep *models.RefreshToken
	for _, t := range r.tokens {
		if t.UserID == userID && t.Token == currentToken && !t.IsRevoked && t.ExpiresAt.After(time.Now()) {
			keep = t
			break
		}
	}
	for _, t := range r.tokens {
		if t.UserID == userID && t != keep {
			t.IsRevoked = true
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) activeCount(userID primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && !t.IsRevoked && t.ExpiresAt.After(time.Now()) {
			n++
		}
	}
	return n
}

type fakeAutoLoginTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.AutoLoginToken
}

func newFakeAutoLoginTokenRepo() *fakeAutoLoginTokenRepo {
	return &fakeAutoLoginTokenRepo{tokens: make(map[string]*models.AutoLoginToken)}
}

func (r *fakeAutoLoginTokenRepo) Create(_ context.Context, userID primitive.ObjectID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &models.AutoLoginToken{
		UserID:    userID,
		Token:     utils.RandomHex(32),
		ExpiresAt: time.Now().Add(models.AutoLoginTokenTTL),
	}
	r.tokens[t.Token] = t
	return t.Token, nil
}

func (r *fakeAutoLoginTokenRepo) Consume(_ context.Context, token string) (*models.AutoLoginToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.IsUsed || !t.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrNotFound
	}
	t.IsUsed = true
	cp := *t
	return &cp, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = primitive.NewObjectID()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindActiveByPhone(_ context.Context, phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone && u.IsActive {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) SetPasswordHash(_ context.Context, id primitive.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PassHash = hash
	return nil
}

func (r *fakeUserRepo) countByPhone(phone string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Phone == phone {
			n++
		}
	}
	return n
}

type fakeCompanyRepo struct {
	mu        sync.Mutex
	companies map[primitive.ObjectID]*models.Company
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{companies: make(map[primitive.ObjectID]*models.Company)}
}

func (r *fakeCompanyRepo) Create(_ context.Context, name string) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &models.Company{ID: primitive.NewObjectID(), Name: name, Balance: 50}
	r.companies[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *fakeCompanyRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeReferralRepo struct {
	links map[string]primitive.ObjectID
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{links: make(map[string]primitive.ObjectID)}
}

func (r *fakeReferralRepo) FindByLink(_ context.Context, link string) (*models.ReferralLink, error) {
	owner, ok := r.links[link]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.ReferralLink{Link: link, User: owner}, nil
}

// fakeSMS records dispatched codes instead of sending them.
type fakeSMS struct {
	mu   sync.Mutex
	sent []sentCode
	fail bool
}

type sentCode struct {
	Phone   string
	Code    string
	Purpose string
}

func (f *fakeSMS) SendVerificationCode(_ context.Context, phone, code, purpose string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errSMSDown
	}
	f.sent = append(f.sent, sentCode{Phone: phone, Code: code, Purpose: purpose})
	return nil
}

func (f *fakeSMS) failNext(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSMS) last() sentCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

var errSMSDown = &smsDownError{}

type smsDownError struct{}

func (*smsDownError) Error() string { return "sms gateway down" }
