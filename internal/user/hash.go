package user

import (
	"bytes"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
)

type (
	argonHasher struct {
		time    uint32
		memory  uint32
		threads uint8
		keyLen  uint32
		saltLen uint32
	}

	hashAndSalt struct {
		hash []byte
		salt []byte
	}
)

func newArgon2IdHasher(time, saltLen uint32, memory uint32, threads uint8, keyLen uint32) *argonHasher {
	return &argonHasher{time: time, saltLen: saltLen, memory: memory, threads: threads, keyLen: keyLen}
}

// GenerateHash using the password and provided salt.
// If no salt value provided fallback to a random value
// generated of the configured length.
func (a *argonHasher) GenerateHash(password, salt []byte) (*hashAndSalt, error) {
	var err error
	if len(salt) == 0 {
		salt, err = randomSecret(a.saltLen)
	}
	if err != nil {
		return nil, err
	}

	hash := argon2.IDKey(password, salt, a.time, a.memory, a.threads, a.keyLen)
	return &hashAndSalt{hash, salt}, nil
}

// Compare generated hash with stored hash.
func (a *argonHasher) Compare(hash, salt, password []byte) error {
	hashSalt, err := a.GenerateHash(password, salt)
	if err != nil {
		return err
	}

	if !bytes.Equal(hash, hashSalt.hash) {
		return errors.New("hash doesn't match")
	}
	return nil
}

func randomSecret(length uint32) ([]byte, error) {
	secret := make([]byte, length)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return secret, nil
}
