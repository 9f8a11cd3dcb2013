package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/pkg/crypto/adaptive"
)

// Entry keys of the persisted session.
var (
	KeyAuthToken = []byte("session/auth_token")
	KeyUserData  = []byte("session/user_data")
)

// encryptionInfo separates the token store key from other uses of the secret.
const encryptionInfo = "walletauth/token-store/v1"

var encryptionSalt = []byte("walletauth.session")

// BadgerTokenStore persists the (token, user) pair in a KV engine.
//
// KeyAuthToken holds the bare token value and KeyUserData the user record
// as JSON. The token's wallet is the user's wallet_address.
type BadgerTokenStore struct {
	kv     KV
	cipher adaptive.Cipher
	logger *slog.Logger
}

// TokenStoreOption configures a BadgerTokenStore.
type TokenStoreOption func(*BadgerTokenStore) error

// WithEncryptionKey seals entries with a key derived from secret.
// An empty secret leaves entries in plaintext.
func WithEncryptionKey(secret string) TokenStoreOption {
	return func(s *BadgerTokenStore) error {
		if secret == "" {
			return nil
		}
		key, err := adaptive.DeriveKey([]byte(secret), encryptionSalt, encryptionInfo)
		if err != nil {
			return err
		}
		c, err := adaptive.New(key)
		if err != nil {
			return err
		}
		s.cipher = c
		return nil
	}
}

// WithCipher seals entries with c.
func WithCipher(c adaptive.Cipher) TokenStoreOption {
	return func(s *BadgerTokenStore) error {
		s.cipher = c
		return nil
	}
}

// NewBadgerTokenStore creates a token store over kv.
func NewBadgerTokenStore(kv KV, logger *slog.Logger, opts ...TokenStoreOption) (*BadgerTokenStore, error) {
	if kv == nil {
		return nil, errors.New("token store: kv is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &BadgerTokenStore{kv: kv, logger: logger}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
	}
	return s, nil
}

// Encrypted reports whether entries are sealed at rest.
func (s *BadgerTokenStore) Encrypted() bool {
	return s.cipher != nil
}

// Load returns the stored session.
//
// ok is false when nothing, or only half of the pair, is stored.
// Undecodable entries yield domain.ErrCorruptSession.
func (s *BadgerTokenStore) Load(ctx context.Context) (*domain.StoredSession, bool, error) {
	values, err := s.kv.GetMany(ctx, KeyAuthToken, KeyUserData)
	if err != nil {
		return nil, false, domain.ErrStorageError.WithDetails("load session").WithCause(err)
	}
	rawToken, rawUser := values[0], values[1]
	if rawToken == nil || rawUser == nil {
		if rawToken != nil || rawUser != nil {
			s.logger.Warn("ignoring half-written session",
				"has_token", rawToken != nil,
				"has_user", rawUser != nil)
		}
		return nil, false, nil
	}

	value, err := s.open(KeyAuthToken, rawToken)
	if err != nil {
		return nil, false, err
	}
	if len(value) == 0 {
		return nil, false, domain.ErrCorruptSession.WithDetails("empty token")
	}
	userData, err := s.open(KeyUserData, rawUser)
	if err != nil {
		return nil, false, err
	}
	var user domain.UserRecord
	if err := json.Unmarshal(userData, &user); err != nil {
		return nil, false, domain.ErrCorruptSession.WithDetails("decode " + string(KeyUserData)).WithCause(err)
	}
	user = user.Normalize()
	if user.WalletAddress.IsZero() {
		return nil, false, domain.ErrCorruptSession.WithDetails("user record has no wallet address")
	}

	return &domain.StoredSession{
		Token: domain.SessionToken{Value: string(value), IssuedFor: user.WalletAddress},
		User:  user,
	}, true, nil
}

// Save writes token and user in one transaction.
func (s *BadgerTokenStore) Save(ctx context.Context, token domain.SessionToken, user domain.UserRecord) error {
	if token.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("empty token")
	}
	user, err := token.BindUser(user)
	if err != nil {
		return err
	}
	userData, err := json.Marshal(user)
	if err != nil {
		return domain.ErrStorageError.WithDetails("encode " + string(KeyUserData)).WithCause(err)
	}
	tokenValue, err := s.seal(KeyAuthToken, []byte(token.Value))
	if err != nil {
		return err
	}
	userValue, err := s.seal(KeyUserData, userData)
	if err != nil {
		return err
	}

	err = s.kv.Update(ctx, func(w Writer) error {
		if err := w.Set(KeyAuthToken, tokenValue); err != nil {
			return err
		}
		return w.Set(KeyUserData, userValue)
	})
	if err != nil {
		return domain.ErrStorageError.WithDetails("save session").WithCause(err)
	}
	return nil
}

// Clear removes both entries in one transaction.
func (s *BadgerTokenStore) Clear(ctx context.Context) error {
	err := s.kv.Update(ctx, func(w Writer) error {
		if err := w.Delete(KeyAuthToken); err != nil {
			return err
		}
		return w.Delete(KeyUserData)
	})
	if err != nil {
		return domain.ErrStorageError.WithDetails("clear session").WithCause(err)
	}
	return nil
}

func (s *BadgerTokenStore) seal(key, data []byte) ([]byte, error) {
	if s.cipher == nil {
		return data, nil
	}
	sealed, err := s.cipher.Encrypt(data, key)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("encrypt " + string(key)).WithCause(err)
	}
	return sealed, nil
}

func (s *BadgerTokenStore) open(key, raw []byte) ([]byte, error) {
	if s.cipher == nil {
		return raw, nil
	}
	data, err := s.cipher.Decrypt(raw, key)
	if err != nil {
		return nil, domain.ErrCorruptSession.WithDetails("decrypt " + string(key)).WithCause(err)
	}
	return data, nil
}
