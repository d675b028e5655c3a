// Package storagetest holds the behaviour every storage backend must share.
// Backend packages embed Suite and provide a constructor.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

// Suite runs the shared storage contract against a backend
type Suite struct {
	suite.Suite

	// NewStorage returns a fresh, empty backend for each test
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) newUser(username string) *model.User {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &model.User{
		Username:     username,
		PasswordHash: "password-hash",
		PINHash:      "pin-hash",
		Bio:          "",
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Suite) newSession(id model.SessionID, username string) *model.Session {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &model.Session{
		ID:          id,
		Username:    username,
		Fingerprint: "fp",
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
}

// User tests

func (s *Suite) TestCreateAndGetUser() {
	user := s.newUser("alice")
	user.Bio = "hello"
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))

	got, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal("password-hash", got.PasswordHash)
	s.Equal("pin-hash", got.PINHash)
	s.Equal("hello", got.Bio)
	s.Equal(model.RoleUser, got.Role)
	s.True(user.CreatedAt.Equal(got.CreatedAt))
}

func (s *Suite) TestCreateUserDuplicate() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))

	err := s.Storage.CreateUser(s.Ctx, s.newUser("alice"))
	s.ErrorIs(err, model.ErrUserExists)
}

func (s *Suite) TestGetUserIsCaseSensitive() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))

	_, err := s.Storage.GetUser(s.Ctx, "Alice")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Storage.GetUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUpdateUserCommits() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))

	updated, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Bio = "new bio"
		u.PasswordHash = "rotated"
		return nil
	})
	s.Require().NoError(err)
	s.Equal("new bio", updated.Bio)

	got, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("new bio", got.Bio)
	s.Equal("rotated", got.PasswordHash)
}

func (s *Suite) TestUpdateUserRollsBackOnError() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
	boom := errors.New("boom")

	_, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Bio = "should not stick"
		u.PasswordHash = "should not stick"
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.Storage.GetUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("", got.Bio)
	s.Equal("password-hash", got.PasswordHash)
}

func (s *Suite) TestUpdateUserCannotRename() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))

	_, err := s.Storage.UpdateUser(s.Ctx, "alice", func(u *model.User) error {
		u.Username = "mallory"
		return nil
	})
	s.Require().NoError(err)

	_, err = s.Storage.GetUser(s.Ctx, "alice")
	s.NoError(err)
	_, err = s.Storage.GetUser(s.Ctx, "mallory")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestUpdateUserNotFound() {
	_, err := s.Storage.UpdateUser(s.Ctx, "nobody", func(u *model.User) error { return nil })
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestDeleteUserRemovesSessions() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("bob")))
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, s.newSession("s1", "alice")))
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, s.newSession("s2", "alice")))
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, s.newSession("s3", "bob")))

	s.Require().NoError(s.Storage.DeleteUser(s.Ctx, "alice"))

	_, err := s.Storage.GetUser(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrUserNotFound)
	_, err = s.Storage.GetSession(s.Ctx, "s1")
	s.ErrorIs(err, model.ErrSessionNotFound)
	_, err = s.Storage.GetSession(s.Ctx, "s2")
	s.ErrorIs(err, model.ErrSessionNotFound)

	// Other users are untouched
	_, err = s.Storage.GetSession(s.Ctx, "s3")
	s.NoError(err)
}

func (s *Suite) TestDeleteUserNotFound() {
	err := s.Storage.DeleteUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestRecreateDeletedUser() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
	s.Require().NoError(s.Storage.DeleteUser(s.Ctx, "alice"))

	s.NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
}

// Session tests

func (s *Suite) TestSaveAndGetSession() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
	session := s.newSession("s1", "alice")
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, session))

	got, err := s.Storage.GetSession(s.Ctx, "s1")
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal("fp", got.Fingerprint)
	s.True(session.ExpiresAt.Equal(got.ExpiresAt))
}

func (s *Suite) TestSaveSessionForUnknownUser() {
	err := s.Storage.SaveSession(s.Ctx, s.newSession("s1", "ghost"))
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestDeleteSession() {
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, s.newUser("alice")))
	s.Require().NoError(s.Storage.SaveSession(s.Ctx, s.newSession("s1", "alice")))

	s.Require().NoError(s.Storage.DeleteSession(s.Ctx, "s1"))

	_, err := s.Storage.GetSession(s.Ctx, "s1")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestDeleteSessionUnknownIsNoop() {
	s.NoError(s.Storage.DeleteSession(s.Ctx, "unknown"))
}

// Challenge tests

func (s *Suite) newChallenge() *model.Challenge {
	return &model.Challenge{
		Salt:       []byte("salt-salt-salt-salt"),
		AnswerHash: []byte("answer-hash"),
		IssuedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *Suite) TestSaveAndTakeChallenge() {
	challenge := s.newChallenge()
	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", challenge, time.Hour))

	got, err := s.Storage.TakeChallenge(s.Ctx, "client-1")
	s.Require().NoError(err)
	s.Equal(challenge.Salt, got.Salt)
	s.Equal(challenge.AnswerHash, got.AnswerHash)
	s.True(challenge.IssuedAt.Equal(got.IssuedAt))
}

func (s *Suite) TestTakeChallengeIsSingleUse() {
	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", s.newChallenge(), time.Hour))

	_, err := s.Storage.TakeChallenge(s.Ctx, "client-1")
	s.Require().NoError(err)

	_, err = s.Storage.TakeChallenge(s.Ctx, "client-1")
	s.ErrorIs(err, model.ErrChallengeNotFound)
}

func (s *Suite) TestSaveChallengeReplacesPrevious() {
	first := s.newChallenge()
	second := s.newChallenge()
	second.AnswerHash = []byte("second")

	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", first, time.Hour))
	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", second, time.Hour))

	got, err := s.Storage.TakeChallenge(s.Ctx, "client-1")
	s.Require().NoError(err)
	s.Equal([]byte("second"), got.AnswerHash)
}

func (s *Suite) TestChallengesAreKeyedByClient() {
	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", s.newChallenge(), time.Hour))

	_, err := s.Storage.TakeChallenge(s.Ctx, "client-2")
	s.ErrorIs(err, model.ErrChallengeNotFound)

	_, err = s.Storage.TakeChallenge(s.Ctx, "client-1")
	s.NoError(err)
}

func (s *Suite) TestConcurrentTakeChallengeSucceedsOnce() {
	s.Require().NoError(s.Storage.SaveChallenge(s.Ctx, "client-1", s.newChallenge(), time.Hour))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Storage.TakeChallenge(s.Ctx, "client-1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(1, successes)
}
