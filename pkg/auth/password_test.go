package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("Tasación#2024")
	require.NoError(t, err)
	assert.NotEqual(t, "Tasación#2024", hash)
	assert.True(t, CheckPassword("Tasación#2024", hash))
	assert.False(t, CheckPassword("tasación#2024", hash))
	assert.False(t, CheckPassword("Tasación#2024", "not-a-bcrypt-hash"))

	again, err := HashPassword("Tasación#2024")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "bcrypt salts each hash")
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "ascii", password: "Mostrador#42x"},
		{name: "accented uppercase counts", password: "Ñandú-joyería7"},
		{name: "symbol counts as special", password: "Quilates18€oro"},
		{name: "length counts runes not bytes", password: "Ñañ€1áéíó", wantErr: "at least 10"},
		{name: "too short", password: "Oro#18k", wantErr: "at least 10"},
		{name: "no uppercase", password: "empeño#2024", wantErr: "uppercase"},
		{name: "no lowercase", password: "EMPEÑO#2024", wantErr: "lowercase"},
		{name: "no digit", password: "Empeño#Plata", wantErr: "digit"},
		{name: "no special", password: "Empeño2024Plata", wantErr: "special"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
