// internal/app/store/accounts/accountstore.go
package accountstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/anomalyhub/internal/app/store/resettokens"
	"github.com/dalemusser/anomalyhub/internal/app/system/identity"
	"github.com/dalemusser/anomalyhub/internal/app/system/normalize"
	"github.com/dalemusser/anomalyhub/internal/app/system/txn"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Collection is the account collection name.
const Collection = "accounts"

// BcryptCost for password hashes.
const BcryptCost = 10

// Account is the stored credential record. Profiles live elsewhere.
type Account struct {
	UID          string    `bson:"_id"`
	Email        string    `bson:"email"`
	EmailCI      string    `bson:"email_ci"` // unique
	PasswordHash string    `bson:"password_hash,omitempty"`
	DisplayName  string    `bson:"display_name"`
	PhotoURL     string    `bson:"photo_url,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (a Account) principal() identity.Principal {
	return identity.Principal{UID: a.UID, Email: a.Email, DisplayName: a.DisplayName, PhotoURL: a.PhotoURL}
}

// Store keeps bcrypt-hashed credentials in MongoDB. It implements
// identity.Accounts and identity.PasswordResetter.
type Store struct {
	c       *mongo.Collection
	resets  *resettokens.Store
	baseURL string
	log     *zap.Logger
}

// New creates a Store. Reset links are built from baseURL and logged; this
// app does not send mail.
func New(db *mongo.Database, resets *resettokens.Store, baseURL string, logger *zap.Logger) *Store {
	return &Store{
		c:       db.Collection(Collection),
		resets:  resets,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger,
	}
}

func (s *Store) insert(ctx context.Context, in identity.NewAccount) (identity.Principal, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return identity.Principal{}, identity.ErrInvalidCredential
	}
	var hash string
	if in.Password != "" {
		if len(in.Password) < identity.MinPasswordLength {
			return identity.Principal{}, identity.ErrWeakPassword
		}
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
		if err != nil {
			return identity.Principal{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}

	now := time.Now().UTC()
	a := Account{
		UID:          uuid.NewString(),
		Email:        email,
		EmailCI:      normalize.Email(email),
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		PhotoURL:     in.PhotoURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		if wafflemongo.IsDup(err) {
			return identity.Principal{}, identity.ErrEmailInUse
		}
		return identity.Principal{}, err
	}
	return a.principal(), nil
}

// Create inserts a new account. An empty password makes a federated-only
// account.
func (s *Store) Create(ctx context.Context, in identity.NewAccount) (identity.Principal, error) {
	return s.insert(ctx, in)
}

func (s *Store) byEmail(ctx context.Context, email string) (Account, error) {
	var a Account
	err := s.c.FindOne(ctx, bson.M{"email_ci": normalize.Email(email)}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Account{}, identity.ErrUserNotFound
	}
	return a, err
}

// VerifyPassword checks email and password. An account without a password
// hash never verifies.
func (s *Store) VerifyPassword(ctx context.Context, email, password string) (identity.Principal, error) {
	a, err := s.byEmail(ctx, email)
	if err != nil {
		return identity.Principal{}, err
	}
	if a.PasswordHash == "" {
		return identity.Principal{}, identity.ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return identity.Principal{}, identity.ErrWrongPassword
	}
	return a.principal(), nil
}

func (s *Store) Get(ctx context.Context, uid string) (identity.Principal, error) {
	var a Account
	err := s.c.FindOne(ctx, bson.M{"_id": uid}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return identity.Principal{}, identity.ErrUserNotFound
	}
	if err != nil {
		return identity.Principal{}, err
	}
	return a.principal(), nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (identity.Principal, error) {
	a, err := s.byEmail(ctx, email)
	if err != nil {
		return identity.Principal{}, err
	}
	return a.principal(), nil
}

// UpdatePassword replaces the password hash for uid.
func (s *Store) UpdatePassword(ctx context.Context, uid, password string) error {
	if len(password) < identity.MinPasswordLength {
		return identity.ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{
		"password_hash": string(b),
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, uid string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return identity.ErrUserNotFound
	}
	return nil
}

// SendPasswordReset issues a reset token and logs the link.
func (s *Store) SendPasswordReset(ctx context.Context, email string) error {
	a, err := s.byEmail(ctx, email)
	if err != nil {
		return err
	}
	if s.resets == nil {
		return errors.New("password resets are not configured")
	}
	r, err := s.resets.Issue(ctx, a.UID, a.Email)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	s.log.Info("password reset link issued",
		zap.String("uid", a.UID),
		zap.String("email", a.Email),
		zap.String("link", s.ResetLink(r.Token)),
		zap.Time("expires_at", r.ExpiresAt))
	return nil
}

// ResetLink is the URL a reset token is delivered as.
func (s *Store) ResetLink(token string) string {
	return s.baseURL + "/login/reset?token=" + url.QueryEscape(token)
}

// CompletePasswordReset consumes token and sets password on its account.
func (s *Store) CompletePasswordReset(ctx context.Context, token, password string) error {
	if len(password) < identity.MinPasswordLength {
		return identity.ErrWeakPassword
	}
	if s.resets == nil {
		return identity.ErrResetTokenInvalid
	}
	// The token is spent only if the password write lands.
	return txn.Run(ctx, s.c.Database(), s.log, func(ctx context.Context) error {
		r, err := s.resets.Consume(ctx, token)
		if errors.Is(err, resettokens.ErrNotFound) {
			return identity.ErrResetTokenInvalid
		}
		if err != nil {
			return err
		}
		if err := s.UpdatePassword(ctx, r.UID, password); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return identity.ErrResetTokenInvalid
			}
			return err
		}
		return nil
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Secondary auth context                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// Secondary returns a scope for creating accounts on someone else's behalf.
// Mongo accounts hold no client-side session, so the scope only tracks
// whom it created and refuses work once closed.
func (s *Store) Secondary(context.Context) (identity.AuthContext, error) {
	return &secondary{store: s}, nil
}

type secondary struct {
	store *Store

	mu      sync.Mutex
	current *identity.Principal
	closed  bool
}

func (c *secondary) Create(ctx context.Context, in identity.NewAccount) (identity.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return identity.Principal{}, errors.New("secondary auth context is closed")
	}
	p, err := c.store.insert(ctx, in)
	if err != nil {
		return identity.Principal{}, err
	}
	c.current = &p
	return p, nil
}

func (c *secondary) SignOut(context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return nil
}

func (c *secondary) Close() error {
	c.mu.Lock()
	c.closed = true
	c.current = nil
	c.mu.Unlock()
	return nil
}
