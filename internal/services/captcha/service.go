// Package captcha issues and checks single-use numeric challenges bound to
// an anonymous client session.
package captcha

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	dcaptcha "github.com/dchest/captcha"
	"golang.org/x/crypto/blake2b"

	"github.com/mcoot/ari-accounts/internal/dependencies/clock"
	"github.com/mcoot/ari-accounts/internal/dependencies/random"
	"github.com/mcoot/ari-accounts/internal/model"
	"github.com/mcoot/ari-accounts/internal/storage"
)

const saltLen = 16

// Errors
var (
	ErrNoChallenge = errors.New("no captcha challenge issued")
	ErrExpired     = errors.New("captcha challenge expired")
	ErrMismatch    = errors.New("captcha answer incorrect")
)

// Config holds captcha configuration
type Config struct {
	TTL      time.Duration
	Length   int
	Width    int
	Height   int
	Language string
}

// DefaultConfig returns default captcha configuration
func DefaultConfig() Config {
	return Config{
		TTL:      600 * time.Second,
		Length:   6,
		Width:    dcaptcha.StdWidth,
		Height:   dcaptcha.StdHeight,
		Language: "en",
	}
}

// Challenge is the client-facing rendering of a captcha
type Challenge struct {
	Image string `json:"image"` // data:image/png;base64,...
	Audio string `json:"audio"` // data:audio/wav;base64,...
}

// Service issues and validates captcha challenges
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	key     [blake2b.Size]byte
	cfg     Config
	logger  *slog.Logger
}

// New creates a captcha Service. The pepper keys the stored answer hashes.
func New(storage storage.Storage, clock clock.Clock, random random.Random, pepper []byte, cfg Config, logger *slog.Logger) (*Service, error) {
	if len(pepper) == 0 {
		return nil, errors.New("captcha pepper must not be empty")
	}
	def := DefaultConfig()
	if cfg.TTL == 0 {
		cfg.TTL = def.TTL
	}
	if cfg.Length == 0 {
		cfg.Length = def.Length
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		key:     blake2b.Sum512(pepper),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// TTL returns how long an issued challenge stays valid
func (s *Service) TTL() time.Duration {
	return s.cfg.TTL
}

// Issue creates a challenge for the client, replacing any earlier one
func (s *Service) Issue(ctx context.Context, clientID string) (*Challenge, error) {
	answer := s.random.String(s.cfg.Length, random.Digits)
	salt, err := s.random.Bytes(saltLen)
	if err != nil {
		return nil, err
	}

	hash, err := s.hash(salt, answer)
	if err != nil {
		return nil, err
	}

	record := &model.Challenge{
		Salt:       salt,
		AnswerHash: hash,
		IssuedAt:   s.clock.Now(),
	}
	if err := s.storage.SaveChallenge(ctx, clientID, record, s.cfg.TTL); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}

	digits := make([]byte, len(answer))
	for i := range answer {
		digits[i] = answer[i] - '0'
	}

	image, err := dataURL("image/png", dcaptcha.NewImage(clientID, digits, s.cfg.Width, s.cfg.Height))
	if err != nil {
		return nil, fmt.Errorf("render image: %w", err)
	}
	audio, err := dataURL("audio/wav", dcaptcha.NewAudio(clientID, digits, s.cfg.Language))
	if err != nil {
		return nil, fmt.Errorf("render audio: %w", err)
	}

	return &Challenge{Image: image, Audio: audio}, nil
}

// Validate consumes the client's challenge and checks the answer. The
// challenge is gone after any attempt, successful or not.
func (s *Service) Validate(ctx context.Context, clientID, answer string) error {
	record, err := s.storage.TakeChallenge(ctx, clientID)
	if err != nil {
		if errors.Is(err, model.ErrChallengeNotFound) {
			return ErrNoChallenge
		}
		return fmt.Errorf("take challenge: %w", err)
	}

	if s.clock.Now().Sub(record.IssuedAt) > s.cfg.TTL {
		return ErrExpired
	}

	hash, err := s.hash(record.Salt, strings.TrimSpace(answer))
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(hash, record.AnswerHash) != 1 {
		return ErrMismatch
	}
	return nil
}

func (s *Service) hash(salt []byte, answer string) ([]byte, error) {
	h, err := blake2b.New256(s.key[:])
	if err != nil {
		return nil, err
	}
	h.Write(salt)
	h.Write([]byte(answer))
	return h.Sum(nil), nil
}

func dataURL(mime string, w io.WriterTo) (string, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
