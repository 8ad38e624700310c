package helper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveVerifyRoundTrip(t *testing.T) {
	salt, hash, err := DerivePassword("S0me-Str0ng#Passw0rd")
	require.NoError(t, err)
	require.NotEmpty(t, salt)
	require.NotEmpty(t, hash)

	assert.True(t, VerifyPassword("S0me-Str0ng#Passw0rd", salt, hash))
	assert.False(t, VerifyPassword("S0me-Str0ng#Passw0rd!", salt, hash))
	assert.False(t, VerifyPassword("", salt, hash))
}

func TestDeriveUsesFreshSalt(t *testing.T) {
	salt1, hash1, err := DerivePassword("S0me-Str0ng#Passw0rd")
	require.NoError(t, err)
	salt2, hash2, err := DerivePassword("S0me-Str0ng#Passw0rd")
	require.NoError(t, err)

	assert.NotEqual(t, salt1, salt2)
	assert.NotEqual(t, hash1, hash2)
}

func TestDeriveRejectsEmptyPassword(t *testing.T) {
	_, _, err := DerivePassword("")
	assert.Error(t, err)
}

func TestHashWithSaltIsDeterministic(t *testing.T) {
	salt, hash, err := DerivePassword("S0me-Str0ng#Passw0rd")
	require.NoError(t, err)

	again, err := HashWithSalt("S0me-Str0ng#Passw0rd", salt)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

func TestVerifyRejectsCorruptSalt(t *testing.T) {
	assert.False(t, VerifyPassword("whatever", "!!not-base64!!", "aGFzaA=="))
}

func TestStrengthPolicy(t *testing.T) {
	policy := DefaultStrengthPolicy()

	tests := []struct {
		name     string
		password string
		wantErr  bool
		reason   string
	}{
		{name: "strong password", password: "S0me-Str0ng#Passw0rd", wantErr: false},
		{name: "empty", password: "", wantErr: true, reason: "may not be empty"},
		{name: "too short", password: "weak", wantErr: true, reason: "at least 10 characters"},
		{name: "no uppercase", password: "n0-upper-here!", wantErr: true, reason: "uppercase"},
		{name: "no digit", password: "No-Digits-Here!", wantErr: true, reason: "number"},
		{name: "no special", password: "NoSpecial123abc", wantErr: true, reason: "special"},
		{name: "repeat run", password: "Haaas-Repe4t#Runs", wantErr: true, reason: "repeated characters"},
		{name: "too long", password: strings.Repeat("Ab1!", 40), wantErr: true, reason: "fewer than"},
		{name: "passphrase waives class rules", password: "thisisaverylongpassphrase", wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Check(tc.password)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestStrengthPolicyEnumeratesAllViolations(t *testing.T) {
	err := DefaultStrengthPolicy().Check("aaa")

	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	// too short, repeat run, missing upper, digit, and special
	assert.Len(t, perr.Reasons, 5)
}

func TestGenerateRandomPassphrase(t *testing.T) {
	policy := DefaultStrengthPolicy()

	for i := 0; i < 50; i++ {
		pass, err := GenerateRandomPassphrase()
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(pass), 20)
		assert.LessOrEqual(t, len(pass), 40)

		for _, r := range pass {
			isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			isDigit := r >= '0' && r <= '9'
			assert.True(t, isLetter || isDigit, "unexpected character %q in %q", r, pass)
		}

		assert.False(t, hasRepeatRun(pass, 3), "repeat run in %q", pass)
		assert.NoError(t, policy.Check(pass))
	}
}
