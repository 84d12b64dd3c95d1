// Package localstore owns the client's data directory: the persisted
// identity, the per-install ID and the secret the identity token is
// signed with.
package localstore

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"parley/internal/models"
	"parley/internal/snowflake"
)

const (
	identityFile  = "identity.jwt"
	installIDFile = "install_id"
	secretFile    = "secret"
)

var ErrNoIdentity = errors.New("no_identity")

type identityClaims struct {
	User models.User `json:"user"`
	jwt.RegisteredClaims
}

type Store struct {
	dir       string
	secret    []byte
	installID uuid.UUID
}

func Open(dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, err
	}

	s := &Store{dir: dir}

	err = s.loadOrCreateSecret()
	if err != nil {
		return nil, err
	}

	err = s.loadOrCreateInstallID()
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) InstallID() uuid.UUID {
	return s.installID
}

// WorkerID derives the snowflake worker ID from the install ID, so two
// installs sharing a backend are unlikely to mint colliding IDs.
func (s *Store) WorkerID() int64 {
	raw := binary.BigEndian.Uint64(s.installID[8:])
	return int64(raw & uint64(snowflake.MaxWorkerID))
}

func (s *Store) loadOrCreateSecret() error {
	path := filepath.Join(s.dir, secretFile)

	raw, err := os.ReadFile(path)
	if err == nil {
		s.secret, err = hex.DecodeString(string(raw))
		return err
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	secret := make([]byte, 32)
	_, err = rand.Read(secret)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, []byte(hex.EncodeToString(secret)), 0o600)
	if err != nil {
		return err
	}

	s.secret = secret
	return nil
}

func (s *Store) loadOrCreateInstallID() error {
	path := filepath.Join(s.dir, installIDFile)

	raw, err := os.ReadFile(path)
	if err == nil {
		s.installID, err = uuid.Parse(string(raw))
		return err
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	id := uuid.New()
	err = os.WriteFile(path, []byte(id.String()), 0o600)
	if err != nil {
		return err
	}

	s.installID = id
	return nil
}

// SaveIdentity seals the user record into an HS512 token under the fixed
// identity file.
func (s *Store) SaveIdentity(user models.User) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, identityClaims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: fmt.Sprint(user.ID),
		},
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.dir, identityFile), []byte(tokenString), 0o600)
}

// LoadIdentity returns ErrNoIdentity when no identity has been saved yet.
// A token that fails verification is treated the same way, the file is
// useless without the matching secret.
func (s *Store) LoadIdentity() (models.User, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if errors.Is(err, os.ErrNotExist) {
		return models.User{}, ErrNoIdentity
	} else if err != nil {
		return models.User{}, err
	}

	token, err := jwt.ParseWithClaims(string(raw), &identityClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return models.User{}, ErrNoIdentity
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok {
		return models.User{}, ErrNoIdentity
	}

	return claims.User, nil
}

func (s *Store) ClearIdentity() error {
	err := os.Remove(filepath.Join(s.dir, identityFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
