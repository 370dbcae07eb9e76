package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cliptide/cliptide/internal/common"
	"github.com/cliptide/cliptide/internal/dbx"
	"github.com/cliptide/cliptide/internal/server/auth"
	"github.com/cliptide/cliptide/internal/server/config"
	"github.com/cliptide/cliptide/internal/server/models"
	"github.com/cliptide/cliptide/internal/server/repositories/repomanager"
	sessionsrepo "github.com/cliptide/cliptide/internal/server/repositories/sessions"
	usersrepo "github.com/cliptide/cliptide/internal/server/repositories/users"
)

// --- helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:            "test-access-secret",
		RefreshTokenSecret:           "test-refresh-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		PasswordHashCost:             bcrypt.MinCost, // keep tests fast
	}
}

func newSessionService(t *testing.T, rm repomanager.RepositoryManager) *SessionService {
	t.Helper()
	s, err := NewSessionService(nil, rm, testConfig())
	if err != nil {
		t.Fatalf("NewSessionService error: %v", err)
	}
	return s
}

func mustHashPassword(t *testing.T, secret string) string {
	t.Helper()
	h, err := auth.HashPassword(secret, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	return h
}

type fakeUsersRepo struct {
	byIdentifier *models.User
	byID         *models.User
	err          error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return u, f.err
}
func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.byID == nil {
		return nil, common.ErrorNotFound
	}
	return f.byID, nil
}
func (f *fakeUsersRepo) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.byIdentifier == nil {
		return nil, common.ErrorNotFound
	}
	return f.byIdentifier, nil
}
func (f *fakeUsersRepo) UpdatePasswordHash(context.Context, string, string) error { return f.err }
func (f *fakeUsersRepo) UpdateAvatarKey(context.Context, string, string) error    { return f.err }

// memSessionsRepo is an in-memory session store with real compare-and-swap
// semantics, used to exercise rotation end to end.
type memSessionsRepo struct {
	mu     sync.Mutex
	hashes map[string]string
}

func newMemSessionsRepo() *memSessionsRepo {
	return &memSessionsRepo{hashes: map[string]string{}}
}

func (m *memSessionsRepo) Put(ctx context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[userID] = hash
	return nil
}

func (m *memSessionsRepo) Get(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[userID]
	if !ok {
		return "", common.ErrorNotFound
	}
	return h, nil
}

func (m *memSessionsRepo) Replace(ctx context.Context, userID, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[userID] != oldHash {
		return common.ErrorConflict
	}
	m.hashes[userID] = newHash
	return nil
}

func (m *memSessionsRepo) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, userID)
	return nil
}

func (m *memSessionsRepo) stored(t *testing.T, userID string) (string, bool) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[userID]
	return h, ok
}

type erroringSessionsRepo struct{ err error }

func (e *erroringSessionsRepo) Put(context.Context, string, string) error { return e.err }
func (e *erroringSessionsRepo) Get(context.Context, string) (string, error) {
	return "", e.err
}
func (e *erroringSessionsRepo) Replace(context.Context, string, string, string) error {
	return e.err
}
func (e *erroringSessionsRepo) Clear(context.Context, string) error { return e.err }

type fakeRepoManager struct {
	u usersrepo.Repository
	s sessionsrepo.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository { return m.s }

// --- tests ---

func TestLogin_Success(t *testing.T) {
	store := newMemSessionsRepo()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", Username: "alice", PasswordHash: mustHashPassword(t, "correct")}},
		s: store,
	}
	s := newSessionService(t, rm)

	pair, err := s.Login(context.Background(), "alice", "correct")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", pair)
	}

	// access token carries the subject and validates on the access path only
	subject, err := s.Codec().Validate(pair.AccessToken, auth.KindAccess)
	if err != nil || subject != "u1" {
		t.Fatalf("access token validate: subject=%q err=%v", subject, err)
	}

	// the stored value is a hash of the refresh token, not the plaintext
	stored, ok := store.stored(t, "u1")
	if !ok {
		t.Fatal("no stored session after login")
	}
	if stored == pair.RefreshToken {
		t.Fatal("store must hold a hash, not the plaintext refresh token")
	}
	if !auth.VerifyRefreshToken(stored, pair.RefreshToken) {
		t.Fatal("stored hash does not match the issued refresh token")
	}
}

func TestLogin_WrongPasswordAndUnknownUser_SameError(t *testing.T) {
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", PasswordHash: mustHashPassword(t, "correct")}},
		s: newMemSessionsRepo(),
	}
	s := newSessionService(t, rm)

	_, err := s.Login(context.Background(), "alice", "nope")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("wrong secret: want ErrInvalidCredentials, got %v", err)
	}

	rm.u = &fakeUsersRepo{} // no such user
	_, err = s.Login(context.Background(), "ghost", "whatever")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("unknown user: want ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_OverwritesPriorSession(t *testing.T) {
	store := newMemSessionsRepo()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", PasswordHash: mustHashPassword(t, "correct")}},
		s: store,
	}
	s := newSessionService(t, rm)

	first, err := s.Login(context.Background(), "alice", "correct")
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	if _, err := s.Login(context.Background(), "alice", "correct"); err != nil {
		t.Fatalf("second login error: %v", err)
	}

	// single active session per user: the first refresh token is dead
	if _, err := s.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("first refresh token must be invalidated, got %v", err)
	}
}

func TestLogin_StoreError(t *testing.T) {
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{err: errors.New("connection refused")},
		s: newMemSessionsRepo(),
	}
	s := newSessionService(t, rm)

	_, err := s.Login(context.Background(), "alice", "correct")
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like an auth failure: %v", err)
	}
}

// Scenario: login -> (A1,R1); refresh(R1) -> (A2,R2); refresh(R1) again is
// reuse and tears the session down; refresh(R2) then fails too; a fresh
// login restores access.
func TestRefresh_RotationAndReuseTeardown(t *testing.T) {
	store := newMemSessionsRepo()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", PasswordHash: mustHashPassword(t, "correct")}},
		s: store,
	}
	s := newSessionService(t, rm)
	ctx := context.Background()

	first, err := s.Login(ctx, "alice", "correct")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	second, err := s.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	// reuse of the rotated-out token
	if _, err := s.Refresh(ctx, first.RefreshToken); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("reused token: want ErrUnauthorized, got %v", err)
	}
	if _, ok := store.stored(t, "u1"); ok {
		t.Fatal("session must be torn down after reuse detection")
	}

	// fail-secure: even the latest token is dead now
	if _, err := s.Refresh(ctx, second.RefreshToken); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("post-teardown refresh: want ErrUnauthorized, got %v", err)
	}

	// fresh login recovers
	if _, err := s.Login(ctx, "alice", "correct"); err != nil {
		t.Fatalf("re-login error: %v", err)
	}
}

func TestRefresh_RejectsBadTokens(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, s: newMemSessionsRepo()}
	s := newSessionService(t, rm)
	ctx := context.Background()

	// malformed
	if _, err := s.Refresh(ctx, "not-a-token"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("malformed: want ErrUnauthorized, got %v", err)
	}

	// kind mismatch: an access token on the refresh path
	access, err := s.Codec().Issue("u1", auth.KindAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := s.Refresh(ctx, access); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("kind mismatch: want ErrUnauthorized, got %v", err)
	}
}

func TestRefresh_NoActiveSession(t *testing.T) {
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, s: newMemSessionsRepo()}
	s := newSessionService(t, rm)

	refresh, err := s.Codec().Issue("u1", auth.KindRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestRefresh_StoreErrorIsNotUnauthorized(t *testing.T) {
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{},
		s: &erroringSessionsRepo{err: errors.New("connection refused")},
	}
	s := newSessionService(t, rm)

	refresh, err := s.Codec().Issue("u1", auth.KindRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	_, err = s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("store failure must not be ErrUnauthorized: %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	store := newMemSessionsRepo()
	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", PasswordHash: mustHashPassword(t, "correct")}},
		s: store,
	}
	s := newSessionService(t, rm)
	ctx := context.Background()

	pair, err := s.Login(ctx, "alice", "correct")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	if err := s.Logout(ctx, "u1"); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if err := s.Logout(ctx, "u1"); err != nil {
		t.Fatalf("second logout must succeed, got %v", err)
	}

	if _, err := s.Refresh(ctx, pair.RefreshToken); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("refresh after logout: want ErrUnauthorized, got %v", err)
	}
}

// gatedSessionsRepo delays Replace until both refreshers have read the same
// stored hash, forcing the interleaving where the compare-and-swap decides.
type gatedSessionsRepo struct {
	*memSessionsRepo
	reads sync.WaitGroup
}

func (g *gatedSessionsRepo) Get(ctx context.Context, userID string) (string, error) {
	h, err := g.memSessionsRepo.Get(ctx, userID)
	g.reads.Done()
	g.reads.Wait()
	return h, err
}

func TestRefresh_ConcurrentSameToken_ExactlyOneWins(t *testing.T) {
	store := &gatedSessionsRepo{memSessionsRepo: newMemSessionsRepo()}
	store.reads.Add(2)

	rm := &fakeRepoManager{
		u: &fakeUsersRepo{byIdentifier: &models.User{ID: "u1", PasswordHash: mustHashPassword(t, "correct")}},
		s: store,
	}
	s := newSessionService(t, rm)
	ctx := context.Background()

	refresh, err := s.Codec().Issue("u1", auth.KindRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	hash, err := auth.HashRefreshToken(refresh, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashRefreshToken error: %v", err)
	}
	if err := store.memSessionsRepo.Put(ctx, "u1", hash); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	type result struct {
		pair *TokenPair
		err  error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			pair, err := s.Refresh(ctx, refresh)
			results <- result{pair, err}
		}()
	}

	var winners []*TokenPair
	var losses int
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil:
			winners = append(winners, r.pair)
		case errors.Is(r.err, common.ErrUnauthorized):
			losses++
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}

	if len(winners) != 1 || losses != 1 {
		t.Fatalf("want exactly one winner and one ErrUnauthorized, got %d winners, %d losses", len(winners), losses)
	}

	// the surviving hash belongs to the winner's new refresh token
	stored, ok := store.stored(t, "u1")
	if !ok {
		t.Fatal("store must still hold exactly one session")
	}
	if !auth.VerifyRefreshToken(stored, winners[0].RefreshToken) {
		t.Fatal("stored hash must match the winning pair's refresh token")
	}
	if auth.VerifyRefreshToken(stored, refresh) {
		t.Fatal("the old refresh token must not match the stored hash anymore")
	}
}
