package services

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sbilibin2017/elevenfingers-auth/internal/logger"
	"github.com/sbilibin2017/elevenfingers-auth/internal/models"
	"github.com/segmentio/kafka-go"
	"golang.org/x/crypto/bcrypt"
)

// Error kinds. Handlers classify with errors.Is against these two.
var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

// Error variables
var (
	ErrEmailAlreadyExists    = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrUsernameAlreadyExists = fmt.Errorf("%w: username already in use", ErrConflict)
	ErrInvalidCredentials    = fmt.Errorf("%w: incorrect username/email or password", ErrUnauthorized)
	ErrInvalidToken          = fmt.Errorf("%w: could not validate credentials", ErrUnauthorized)
	ErrTokenExpired          = fmt.Errorf("%w: token has expired", ErrInvalidToken)
	ErrPasswordTooLong       = fmt.Errorf("%w: password exceeds 72 bytes", ErrInvalidInput)
	ErrUserNotFound          = errors.New("user not found")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByEmailOrUsername(ctx context.Context, email, username *string) (*models.UserDB, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, email, username, passwordHash string) (*models.UserDB, error)
}

// UserCache caches login lookups by identifier.
type UserCache interface {
	Get(ctx context.Context, identifier string) (*models.UserDB, error)
	Set(ctx context.Context, identifier string, user *models.UserDB) error
	Delete(ctx context.Context, identifier string) error
}

// TokenManager issues and parses access tokens.
type TokenManager interface {
	Generate(ctx context.Context, username string) (string, error)
	GetUsername(ctx context.Context, tokenString string) (string, error)
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuthService handles signup, login and token verification.
type AuthService struct {
	reader      UserReader
	writer      UserWriter
	cache       UserCache
	tokens      TokenManager
	kafkaWriter KafkaWriter
	hashCost    int
	afterCommit func(ctx context.Context, fn func(ctx context.Context))
}

// NewAuthService creates a new AuthService instance. cache and kafkaWriter
// are optional and may be nil.
func NewAuthService(
	reader UserReader,
	writer UserWriter,
	cache UserCache,
	tokens TokenManager,
	kafkaWriter KafkaWriter,
) *AuthService {
	return &AuthService{
		reader:      reader,
		writer:      writer,
		cache:       cache,
		tokens:      tokens,
		kafkaWriter: kafkaWriter,
		hashCost:    bcrypt.DefaultCost,
		afterCommit: func(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) },
	}
}

// WithHashCost overrides the bcrypt cost used for new password hashes.
func (svc *AuthService) WithHashCost(cost int) *AuthService {
	svc.hashCost = cost
	return svc
}

// WithAfterCommit sets how post-signup side effects are scheduled. The
// default runs them right after the insert; middlewares.AfterCommit holds
// them until the request transaction has committed.
func (svc *AuthService) WithAfterCommit(afterCommit func(ctx context.Context, fn func(ctx context.Context))) *AuthService {
	svc.afterCommit = afterCommit
	return svc
}

// Signup registers a new user and returns its public projection.
func (svc *AuthService) Signup(ctx context.Context, email, username, password string) (*models.User, error) {
	existing, err := svc.reader.GetByEmailOrUsername(ctx, &email, &username)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return nil, err
	}
	if existing != nil {
		if existing.Email == email {
			logger.Log.Infow("signup rejected: email taken", "email", email)
			return nil, ErrEmailAlreadyExists
		}
		logger.Log.Infow("signup rejected: username taken", "username", username)
		return nil, ErrUsernameAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), svc.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return nil, err
	}

	user, err := svc.writer.Save(ctx, email, username, string(hashedPassword))
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		return nil, ErrEmailAlreadyExists
	case errors.Is(err, models.ErrDuplicateUsername):
		return nil, ErrUsernameAlreadyExists
	case err != nil:
		logger.Log.Errorw("failed to save user", "err", err)
		return nil, err
	}

	svc.afterCommit(ctx, func(ctx context.Context) {
		// A cached username lookup equal to the new email would now be
		// shadowed by the email match.
		if svc.cache != nil {
			if err := svc.cache.Delete(ctx, email); err != nil {
				logger.Log.Warnw("failed to invalidate user cache", "identifier", email, "err", err)
			}
		}
		svc.publishSignedUp(ctx, user)
	})

	logger.Log.Infow("user signed up", "user_id", user.ID, "username", user.Username)
	return user.Public(), nil
}

// Login checks the identifier (email first, then username) and password,
// and issues an access token for the user.
func (svc *AuthService) Login(ctx context.Context, identifier, password string) (*models.Token, error) {
	user, err := svc.lookup(ctx, identifier)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return nil, err
	}
	if user == nil {
		logger.Log.Infow("login failed: unknown identifier", "identifier", identifier)
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Infow("login failed: wrong password", "username", user.Username)
		return nil, ErrInvalidCredentials
	}

	token, err := svc.tokens.Generate(ctx, user.Username)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return nil, err
	}

	return &models.Token{AccessToken: token, TokenType: models.TokenTypeBearer}, nil
}

// Verify validates a token and returns the username it was issued to.
func (svc *AuthService) Verify(ctx context.Context, token string) (string, error) {
	username, err := svc.tokens.GetUsername(ctx, token)
	if errors.Is(err, jwt.ErrTokenExpired) {
		logger.Log.Infow("token rejected", "reason", "expired")
		return "", ErrTokenExpired
	}
	if err != nil {
		logger.Log.Infow("token rejected", "reason", err.Error())
		return "", ErrInvalidToken
	}
	return username, nil
}

// Profile returns the public projection of the user with the given username.
func (svc *AuthService) Profile(ctx context.Context, username string) (*models.User, error) {
	user, err := svc.reader.GetByEmailOrUsername(ctx, nil, &username)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user.Public(), nil
}

// lookup resolves an identifier through the cache when configured.
// Cache failures degrade to a database read.
func (svc *AuthService) lookup(ctx context.Context, identifier string) (*models.UserDB, error) {
	if svc.cache != nil {
		user, err := svc.cache.Get(ctx, identifier)
		if err != nil {
			logger.Log.Warnw("failed to read user cache", "identifier", identifier, "err", err)
		} else if user != nil {
			return user, nil
		}
	}

	user, err := svc.reader.GetByEmailOrUsername(ctx, &identifier, &identifier)
	if err != nil || user == nil {
		return user, err
	}

	if svc.cache != nil {
		if err := svc.cache.Set(ctx, identifier, user); err != nil {
			logger.Log.Warnw("failed to write user cache", "identifier", identifier, "err", err)
		}
	}
	return user, nil
}

// publishSignedUp publishes a signup event to Kafka. Failures are logged only.
func (svc *AuthService) publishSignedUp(ctx context.Context, user *models.UserDB) {
	if svc.kafkaWriter == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "user_id", user.ID)
		return
	}

	event := models.UserSignedUp{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal signup event for Kafka", "user_id", user.ID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(user.ID, 10)),
		Value: data,
	}

	if err := svc.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish signup event to Kafka", "user_id", user.ID, "error", err)
	} else {
		logger.Log.Infow("Signup event published to Kafka", "user_id", user.ID)
	}
}
