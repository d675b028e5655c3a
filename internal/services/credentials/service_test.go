package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/ari-accounts/internal/dependencies/mocks"
	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
	"github.com/mcoot/ari-accounts/internal/storage/memory"
	"github.com/mcoot/ari-accounts/internal/testutil"
)

// failingStorage fails every write with a backend error
type failingStorage struct {
	storage.Storage
}

var errBackend = errors.New("backend unavailable")

func (f failingStorage) CreateUser(ctx context.Context, user *model.User) error { return errBackend }

func (f failingStorage) UpdateUser(ctx context.Context, username string, mutate storage.UserMutation) (*model.User, error) {
	return nil, errBackend
}

func (f failingStorage) DeleteUser(ctx context.Context, username string) error { return errBackend }

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	hasher  *Hasher
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	var err error
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.hasher, err = NewHasher(TestHasherConfig(), random.New())
	s.Require().NoError(err)
	s.service = New(s.storage, s.hasher, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) createAlice() *model.User {
	user, err := s.service.Create(s.ctx, "alice", "hunter22", "123456")
	s.Require().NoError(err)
	return user
}

// Validation tests

func (s *ServiceSuite) TestValidateUsername() {
	s.NoError(ValidateUsername("alice"))
	s.NoError(ValidateUsername("ünïcode"))
	s.NoError(ValidateUsername(strings.Repeat("a", model.UsernameMaxLen)))

	s.ErrorIs(ValidateUsername(""), ErrInvalidUsername)
	s.ErrorIs(ValidateUsername(strings.Repeat("a", model.UsernameMaxLen+1)), ErrInvalidUsername)
	s.ErrorIs(ValidateUsername("has space"), ErrInvalidUsername)
	s.ErrorIs(ValidateUsername("tab\there"), ErrInvalidUsername)
	s.ErrorIs(ValidateUsername("nul\x00"), ErrInvalidUsername)
	s.ErrorIs(ValidateUsername("\xff\xfe"), ErrInvalidUsername)
}

func (s *ServiceSuite) TestValidatePassword() {
	s.NoError(ValidatePassword("x"))
	s.ErrorIs(ValidatePassword(""), ErrInvalidPassword)
	s.ErrorIs(ValidatePassword(strings.Repeat("x", PasswordMaxLen+1)), ErrInvalidPassword)
}

func (s *ServiceSuite) TestGeneratePIN() {
	s.random.QueueString("493027")
	s.Equal("493027", s.service.GeneratePIN())
	s.Len(s.service.GeneratePIN(), model.PINLen)
}

func (s *ServiceSuite) TestGeneratePINIsNumeric() {
	svc := New(s.storage, s.hasher, s.clock, random.New(), testutil.NopLogger())
	for i := 0; i < 20; i++ {
		pin := svc.GeneratePIN()
		s.Len(pin, model.PINLen)
		for _, r := range pin {
			s.True(r >= '0' && r <= '9', pin)
		}
	}
}

// Create tests

func (s *ServiceSuite) TestCreatePersistsHashedSecrets() {
	user := s.createAlice()

	s.Equal(model.RoleUser, user.Role)
	stored, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(stored.PasswordHash, model.EncodedHashLen)
	s.Len(stored.PINHash, model.EncodedHashLen)
	s.NotContains(stored.PasswordHash, "hunter22")
	s.NotEqual(stored.PasswordHash, stored.PINHash)
	s.Equal("", stored.Bio)
	s.True(stored.CreatedAt.Equal(s.clock.Now()))
}

func (s *ServiceSuite) TestCreateDuplicateUsername() {
	s.createAlice()

	_, err := s.service.Create(s.ctx, "alice", "other", "654321")
	s.ErrorIs(err, model.ErrUserExists)
}

func (s *ServiceSuite) TestCreateRejectsInvalidInput() {
	_, err := s.service.Create(s.ctx, "", "pw", "123456")
	s.ErrorIs(err, ErrInvalidUsername)

	_, err = s.service.Create(s.ctx, "bob", "", "123456")
	s.ErrorIs(err, ErrInvalidPassword)

	_, err = s.service.Create(s.ctx, "bob", "pw", "12")
	s.ErrorIs(err, ErrInvalidPIN)
}

func (s *ServiceSuite) TestCreateStoreFailure() {
	svc := New(failingStorage{s.storage}, s.hasher, s.clock, s.random, testutil.NopLogger())

	_, err := svc.Create(s.ctx, "alice", "pw", "123456")
	s.ErrorIs(err, ErrStoreFailure)
}

// Lookup and verify tests

func (s *ServiceSuite) TestLookupIsExact() {
	s.createAlice()

	_, err := s.service.Lookup(s.ctx, "alice")
	s.NoError(err)
	_, err = s.service.Lookup(s.ctx, "ALICE")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *ServiceSuite) TestVerifySecrets() {
	user := s.createAlice()

	s.True(s.service.VerifyPassword(user, "hunter22"))
	s.False(s.service.VerifyPassword(user, "hunter23"))
	s.True(s.service.VerifyPIN(user, "123456"))
	s.False(s.service.VerifyPIN(user, "123457"))

	// Secrets are not interchangeable
	s.False(s.service.VerifyPassword(user, "123456"))
	s.False(s.service.VerifyPIN(user, "hunter22"))
}

func (s *ServiceSuite) TestVerifyCorruptHashFails() {
	user := s.createAlice()
	user.PasswordHash = "corrupt"

	s.False(s.service.VerifyPassword(user, "hunter22"))
}

// Update tests

func (s *ServiceSuite) TestRotatePassword() {
	s.createAlice()

	s.Require().NoError(s.service.RotatePassword(s.ctx, "alice", "new password"))

	user, err := s.service.Lookup(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(s.service.VerifyPassword(user, "new password"))
	s.False(s.service.VerifyPassword(user, "hunter22"))
	s.True(s.service.VerifyPIN(user, "123456"))
}

func (s *ServiceSuite) TestUpdatePasswordAndBioTogether() {
	s.createAlice()
	s.clock.Advance(time.Hour)
	password, bio := "rotated", "hello there"

	user, err := s.service.Update(s.ctx, "alice", Changes{Password: &password, Bio: &bio})
	s.Require().NoError(err)

	s.Equal("hello there", user.Bio)
	s.True(s.service.VerifyPassword(user, "rotated"))
	s.True(user.UpdatedAt.Equal(s.clock.Now()))
}

func (s *ServiceSuite) TestUpdateBioOnly() {
	s.createAlice()
	bio := "just bio"

	user, err := s.service.Update(s.ctx, "alice", Changes{Bio: &bio})
	s.Require().NoError(err)
	s.Equal("just bio", user.Bio)
	s.True(s.service.VerifyPassword(user, "hunter22"))
}

func (s *ServiceSuite) TestUpdateBioTooLongChangesNothing() {
	s.createAlice()
	password, bio := "rotated", strings.Repeat("b", model.BioMaxLen+1)

	_, err := s.service.Update(s.ctx, "alice", Changes{Password: &password, Bio: &bio})
	s.ErrorIs(err, ErrBioTooLong)

	user, err := s.service.Lookup(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(s.service.VerifyPassword(user, "hunter22"))
}

func (s *ServiceSuite) TestUpdateStoreFailure() {
	s.createAlice()
	svc := New(failingStorage{s.storage}, s.hasher, s.clock, s.random, testutil.NopLogger())
	bio := "x"

	_, err := svc.Update(s.ctx, "alice", Changes{Bio: &bio})
	s.ErrorIs(err, ErrStoreFailure)
}

func (s *ServiceSuite) TestUpdateUnknownUser() {
	bio := "x"
	_, err := s.service.Update(s.ctx, "ghost", Changes{Bio: &bio})
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Rehash tests

func (s *ServiceSuite) TestRehashUpgradesLegacyHashes() {
	legacy, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	s.Require().NoError(err)
	legacyPIN, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{
		Username:     "old",
		PasswordHash: string(legacy),
		PINHash:      string(legacyPIN),
		Role:         model.RoleUser,
	}))

	user, err := s.service.Lookup(s.ctx, "old")
	s.Require().NoError(err)
	s.Require().True(s.service.VerifyPassword(user, "hunter22"))

	s.Require().NoError(s.service.Rehash(s.ctx, user, "hunter22", "123456"))

	upgraded, err := s.service.Lookup(s.ctx, "old")
	s.Require().NoError(err)
	s.Len(upgraded.PasswordHash, model.EncodedHashLen)
	s.True(strings.HasPrefix(upgraded.PasswordHash, "$argon2id$"))
	s.True(s.service.VerifyPassword(upgraded, "hunter22"))
	s.True(s.service.VerifyPIN(upgraded, "123456"))
}

func (s *ServiceSuite) createLegacyUser(username, password, pin string) {
	legacy, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	s.Require().NoError(err)
	legacyPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	s.Require().NoError(err)
	s.Require().NoError(s.storage.CreateUser(s.ctx, &model.User{
		Username:     username,
		PasswordHash: string(legacy),
		PINHash:      string(legacyPIN),
		Role:         model.RoleUser,
	}))
}

func (s *ServiceSuite) TestRehashDoesNotUndoConcurrentRotation() {
	s.createLegacyUser("old", "hunter22", "123456")

	// Signin verified the old password...
	user, err := s.service.Lookup(s.ctx, "old")
	s.Require().NoError(err)
	s.Require().True(s.service.VerifyPassword(user, "hunter22"))

	// ...then another request rotated it before the upgrade ran
	s.Require().NoError(s.service.RotatePassword(s.ctx, "old", "new-pass"))

	s.Require().NoError(s.service.Rehash(s.ctx, user, "hunter22", "123456"))

	stored, err := s.service.Lookup(s.ctx, "old")
	s.Require().NoError(err)
	s.True(s.service.VerifyPassword(stored, "new-pass"))
	s.False(s.service.VerifyPassword(stored, "hunter22"))
	// The untouched legacy PIN is still waiting for its upgrade
	s.True(s.service.VerifyPIN(stored, "123456"))
}

func (s *ServiceSuite) TestRehashLeavesCurrentHashesAlone() {
	user := s.createAlice()

	s.Require().NoError(s.service.Rehash(s.ctx, user, "hunter22", "123456"))

	stored, err := s.storage.GetUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.PasswordHash, stored.PasswordHash)
}

// Delete tests

func (s *ServiceSuite) TestDeleteRemovesUser() {
	s.createAlice()

	s.Require().NoError(s.service.Delete(s.ctx, "alice"))

	_, err := s.service.Lookup(s.ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *ServiceSuite) TestDeleteStoreFailure() {
	s.createAlice()
	svc := New(failingStorage{s.storage}, s.hasher, s.clock, s.random, testutil.NopLogger())

	s.ErrorIs(svc.Delete(s.ctx, "alice"), ErrStoreFailure)
}
