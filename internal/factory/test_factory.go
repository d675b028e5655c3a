package factory

import (
	"bytes"
	"context"
	"time"

	"github.com/mcoot/ari-accounts/internal/dependencies/mocks"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/services/captcha"
	"github.com/mcoot/ari-accounts/internal/services/credentials"
	"github.com/mcoot/ari-accounts/internal/services/session"
	"github.com/mcoot/ari-accounts/internal/storage"
	"github.com/mcoot/ari-accounts/internal/storage/memory"
	"github.com/mcoot/ari-accounts/internal/testutil"
)

// TestCaptchaAnswer is what MockRandom makes every captcha answer unless
// other strings are queued
const TestCaptchaAnswer = "000000"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New())
}

// NewTestAppWithStorage creates a test App backed by store
func NewTestAppWithStorage(store storage.Storage) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	cfg := Config{
		SecretKey:  bytes.Repeat([]byte("s"), 64),
		CaptchaKey: bytes.Repeat([]byte("c"), 64),
		Hasher:     credentials.TestHasherConfig(),
		Session:    session.DefaultConfig(),
		Captcha:    captcha.DefaultConfig(),
	}

	app, err := newWithDependencies(store, mockClock, mockRandom, cfg, testutil.NopLogger())
	if err != nil {
		// Fixed test configuration cannot fail validation
		panic(err)
	}

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// CreateUser creates an account directly through the credential service
func (t *TestApp) CreateUser(ctx context.Context, username, password, pin string) (*model.User, error) {
	return t.Credentials.Create(ctx, username, password, pin)
}
