package services

import (
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPasswordArgon2id(t *testing.T) {
	hash, err := argon2id.CreateHash("hunter2", argon2id.DefaultParams)
	assert.NoError(t, err)

	match, err := VerifyPassword("hunter2", hash)
	assert.NoError(t, err)
	assert.True(t, match)

	match, err = VerifyPassword("wrong", hash)
	assert.NoError(t, err)
	assert.False(t, match)
}

func TestVerifyPasswordLegacyBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	match, err := VerifyPassword("hunter2", string(hash))
	assert.NoError(t, err)
	assert.True(t, match)

	match, err = VerifyPassword("wrong", string(hash))
	assert.NoError(t, err)
	assert.False(t, match)
}
