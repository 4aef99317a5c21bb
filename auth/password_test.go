package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastParams keeps Argon2id cheap in tests.
var fastParams = Argon2Params{MemoryKiB: 8, Time: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Correct.Horse1", fastParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8,t=1,p=1$"))

	ok, err := VerifyPassword("Correct.Horse1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h1, err := HashPassword("Same.Password1", fastParams)
	require.NoError(t, err)
	h2, err := HashPassword("Same.Password1", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$!!!$aGFzaA",
	} {
		ok, err := VerifyPassword("pw", encoded)
		assert.False(t, ok, encoded)
		assert.Error(t, err, encoded)
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	assert.NoError(t, CheckPasswordPolicy("Str0ng!pass"))

	for _, pw := range []string{
		"Sh0rt!a",        // too short
		"alllower1!",     // no upper
		"ALLUPPER1!",     // no lower
		"NoDigits!!",     // no digit
		"NoSpecial11",    // no special
	} {
		err := CheckPasswordPolicy(pw)
		require.Error(t, err, pw)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, pw)
		assert.Equal(t, "password", verr.Field)
	}
}
