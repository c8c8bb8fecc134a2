package otpAuth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	findErr  error
	creates  int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]Account)}
}

func (s *mockAccountStore) FindByEmail(_ context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return Account{}, s.findErr
	}
	acct, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (s *mockAccountStore) Create(_ context.Context, account Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.Email]; ok {
		return Account{}, ErrAccountExists
	}
	s.creates++
	s.accounts[account.Email] = account
	return account, nil
}

func (s *mockAccountStore) UpdateVerified(_ context.Context, email string, verified bool) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	acct.Verified = verified
	s.accounts[email] = acct
	return acct, nil
}

func (s *mockAccountStore) get(email string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	return acct, ok
}

func (s *mockAccountStore) setFindErr(err error) {
	s.mu.Lock()
	s.findErr = err
	s.mu.Unlock()
}

type sentMessage struct {
	recipient string
	subject   string
	body      string
}

type recordingNotifier struct {
	sent chan sentMessage
	err  error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan sentMessage, 32)}
}

func (n *recordingNotifier) Send(_ context.Context, recipient, subject, body string) error {
	select {
	case n.sent <- sentMessage{recipient: recipient, subject: subject, body: body}:
	default:
	}
	return n.err
}

var codePattern = regexp.MustCompile(`letter-spacing: 6px;">(\d+)<`)

// nextCode waits for the next verification email and extracts its code.
func (n *recordingNotifier) nextCode(t testing.TB, recipient string) string {
	t.Helper()
	select {
	case msg := <-n.sent:
		if msg.recipient != recipient {
			t.Fatalf("expected email to %q, got %q", recipient, msg.recipient)
		}
		m := codePattern.FindStringSubmatch(msg.body)
		if m == nil {
			t.Fatalf("no code in body: %s", msg.body)
		}
		return m[1]
	case <-time.After(2 * time.Second):
		t.Fatal("expected a verification email")
	}
	return ""
}

// blockingNotifier holds every Send until release is closed and reports each
// recipient on started as soon as its Send begins.
type blockingNotifier struct {
	started chan string
	release chan struct{}
}

func newBlockingNotifier() *blockingNotifier {
	return &blockingNotifier{started: make(chan string, 8), release: make(chan struct{})}
}

func (n *blockingNotifier) Send(ctx context.Context, recipient, _, _ string) error {
	select {
	case n.started <- recipient:
	default:
	}
	select {
	case <-n.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type staticReadiness struct {
	mu    sync.Mutex
	ready bool
}

func (r *staticReadiness) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *staticReadiness) set(v bool) {
	r.mu.Lock()
	r.ready = v
	r.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = append([]byte(nil), testSecret...)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.OTP.SweepInterval = 0
	cfg.Metrics.Enabled = true
	return cfg
}

type testEngine struct {
	*Engine
	store    *mockAccountStore
	notifier *recordingNotifier
	clock    *testClock
}

func buildTestEngine(t testing.TB, cfg Config, configure func(*Builder)) *testEngine {
	t.Helper()

	te := &testEngine{
		store:    newMockAccountStore(),
		notifier: newRecordingNotifier(),
		clock:    newTestClock(),
	}
	b := New().
		WithConfig(cfg).
		WithAccountStore(te.store).
		WithNotifier(te.notifier).
		WithClock(te.clock.Now)
	if configure != nil {
		configure(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	te.Engine = engine
	return te
}

// registerVerified walks an account through Register and VerifyOtp.
func (te *testEngine) registerVerified(t testing.TB, name, email, pass string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	if _, err := te.Register(ctx, RegisterRequest{Name: name, Email: email, Password: pass}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	code := te.notifier.nextCode(t, email)
	res, err := te.VerifyOtp(ctx, email, code)
	if err != nil {
		t.Fatalf("VerifyOtp failed: %v", err)
	}
	return res
}

func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
