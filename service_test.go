package authcore

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lifeflow/authcore/password"
	"github.com/lifeflow/authcore/session"
	"github.com/lifeflow/authcore/token"
)

// --- identity store fake ---

type fakeIdentityStore struct {
	mu        sync.Mutex
	byID      map[int64]*Identity
	nextID    int64
	insertErr error
	updateErr error
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{byID: make(map[int64]*Identity), nextID: 1}
}

func (f *fakeIdentityStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.byID {
		if identity.Email == email {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (f *fakeIdentityStore) FindByID(_ context.Context, id int64) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.byID[id]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	clone := *identity
	return &clone, nil
}

func (f *fakeIdentityStore) Insert(_ context.Context, identity *Identity) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, existing := range f.byID {
		if existing.Email == identity.Email {
			return nil, ErrDuplicateIdentity
		}
	}
	clone := *identity
	clone.ID = f.nextID
	f.nextID++
	f.byID[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeIdentityStore) Update(_ context.Context, identity *Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[identity.ID]; !ok {
		return ErrIdentityNotFound
	}
	clone := *identity
	f.byID[identity.ID] = &clone
	return nil
}

func (f *fakeIdentityStore) SetVerified(_ context.Context, id int64, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.byID[id]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.Verified = verified
	return nil
}

func (f *fakeIdentityStore) seed(t *testing.T, id int64, email, plaintext string, verified bool) *Identity {
	t.Helper()
	key, err := password.NewKey()
	if err != nil {
		t.Fatalf("seed: key generation failed: %v", err)
	}
	digest, err := password.Digest(key, plaintext)
	if err != nil {
		t.Fatalf("seed: digest failed: %v", err)
	}

	identity := &Identity{
		ID:             id,
		Email:          email,
		Name:           "Test Identity",
		Verified:       verified,
		Role:           "donor",
		PasswordDigest: digest,
		PasswordKey:    key,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id] = identity
	if id >= f.nextID {
		f.nextID = id + 1
	}
	return identity
}

// --- otp fake ---

type fakeOTPService struct {
	mu          sync.Mutex
	sentTo      []string
	acceptCode  string
	generateErr error
	verifyErr   error
}

func (f *fakeOTPService) GenerateAndSend(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return f.generateErr
	}
	f.sentTo = append(f.sentTo, email)
	return nil
}

func (f *fakeOTPService) Verify(_ context.Context, _, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return code == f.acceptCode, nil
}

// --- email fake ---

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeEmailSender struct {
	mu       sync.Mutex
	messages []sentMail
	sendErr  error
}

func (f *fakeEmailSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeEmailSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no mail was sent")
	}
	return f.messages[len(f.messages)-1]
}

// --- harness ---

type testFixture struct {
	service    *Service
	identities *fakeIdentityStore
	otp        *fakeOTPService
	email      *fakeEmailSender
	sessions   *session.Store
	issuer     *token.Issuer
}

func newTestService(t *testing.T, mutate func(*Config)) *testFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	issuer, err := token.NewIssuer(token.Config{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "authcore-test",
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	fixture := &testFixture{
		identities: newFakeIdentityStore(),
		otp:        &fakeOTPService{acceptCode: "123456"},
		email:      &fakeEmailSender{},
		sessions:   session.NewStore(rdb, "as"),
		issuer:     issuer,
	}

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if mutate != nil {
		mutate(&cfg)
	}

	service, err := New(fixture.identities, issuer, fixture.sessions, fixture.otp, fixture.email, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(service.Close)

	fixture.service = service
	return fixture
}

func requestCtx(userAgent, ip string) context.Context {
	ctx := context.Background()
	if ip != "" {
		ctx = WithClientIP(ctx, ip)
	}
	if userAgent != "" {
		ctx = WithUserAgent(ctx, userAgent)
	}
	return ctx
}

func (f *testFixture) sessionCount(t *testing.T, identityID int64) int {
	t.Helper()
	records, err := f.sessions.FindAllByIdentity(context.Background(), identityID)
	if err != nil {
		t.Fatalf("FindAllByIdentity failed: %v", err)
	}
	return len(records)
}

func (f *testFixture) validSessionCount(t *testing.T, identityID int64) int {
	t.Helper()
	records, err := f.sessions.FindAllByIdentity(context.Background(), identityID)
	if err != nil {
		t.Fatalf("FindAllByIdentity failed: %v", err)
	}
	n := 0
	for _, rec := range records {
		if rec.Valid {
			n++
		}
	}
	return n
}
