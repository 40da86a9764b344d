package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeVerifyToken(t *testing.T) {
	const secret = "secret"
	timeout := 3 * 24 * time.Hour

	now := time.Now()
	usr := User{
		ID:        "4b4e2c4e-2b0a-4c55-8f7a-0c7f6d1a9e11",
		Name:      "T",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken, err := MakeToken(usr, secret)
	require.NoError(t, err)

	// generate an expired token
	dayLate := timeout + (24 * time.Hour)
	NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, err := MakeToken(usr, secret)
	require.NoError(t, err)
	NowFunc = time.Now // reset

	loggedInAgain := usr
	loggedInAgain.LastLogin = now.Add(time.Minute)

	tests := []struct {
		name    string
		usr     User
		token   string
		secret  string
		wantErr error
	}{
		{name: "no token", usr: usr, secret: secret, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, secret: secret, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, secret: secret, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, secret: secret, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, secret: secret, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "other secret", usr: usr, secret: "other", token: validToken, wantErr: errInvalidToken},
		{name: "last login changed", usr: loggedInAgain, secret: secret, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, secret: secret, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, secret: secret, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyToken(tt.usr, tt.token, tt.secret, timeout)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "4b4e2c4e-2b0a-4c55-8f7a-0c7f6d1a9e11"}
	id, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("%%%")
	assert.Error(t, err)
}
