package main

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/testutil"
)

const newPwd = "Str0ng&Secure!"

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &commandLine{
		db:       sqlx.NewDb(mockDB, "sqlmock"),
		usrSvc:   env.UserSvc,
		validate: env.Validate,
	}, env
}

type cliTest struct {
	name        string
	args        []string // without program name
	wantErr     error
	wantErrStr  string
	// wantInvalid expects validator.ValidationErrors
	wantInvalid bool
	extra       interface{}
}

type pwdInput struct {
	pwd, confirm string
}

func mockPasswordPrompt(t *testing.T, extra interface{}) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })

	calls := 0
	readPasswordFunc = func(int) ([]byte, error) {
		calls++
		in, ok := extra.(pwdInput)
		if !ok {
			return nil, nil
		}
		if calls%2 == 0 && in.confirm != "" {
			return []byte(in.confirm), nil
		}
		return []byte(in.pwd), nil
	}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantInvalid:
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs), "want validation errors, got %v", err)
	case tt.wantErr != nil:
		assert.True(t, errors.Is(err, tt.wantErr), "cli.run() error = %v, wantErr %v", err, tt.wantErr)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })

	var gotCommand string
	gooseRunFunc = func(_ context.Context, db *sqlx.DB, command string, args ...string) error {
		require.NotNil(t, db)
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "rooms", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Equal(t, "create", gotCommand)

	cli.db = nil
	assert.EqualError(t, cli.run([]string{"admin", "migrate", "up"}), "migrate requires a postgres database")
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, env.UserRepo, "Old Name", "old@test.cd", "Pa$$w0rd!", user.RoleStudent, "DTI", false)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"adduser", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "new@test.cd", "-name", "New Admin"}, wantErr: errHelp},
		{
			name:    "weak password",
			args:    []string{"adduser", "-email", "new@test.cd", "-name", "New Admin"},
			extra:       pwdInput{pwd: "12345678"},
			wantInvalid: true,
		},
		{
			name:  "confirmation mismatch",
			args:  []string{"adduser", "-email", "new@test.cd", "-name", "New Admin"},
			extra:       pwdInput{pwd: newPwd, confirm: "Other&Secure1"},
			wantInvalid: true,
		},
		{name: "create", args: []string{"adduser", "-email", " New@Test.cd ", "-name", "New Admin"}, extra: pwdInput{pwd: newPwd}},
		{
			name:  "update existing",
			args:  []string{"adduser", "-email", existing.Email, "-name", "New Name", "-role", "teacher", "-program", ""},
			extra: pwdInput{pwd: newPwd},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswordPrompt(t, tt.extra)
			checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	created, err := env.UserSvc.GetByEmail(ctx, "new@test.cd")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, created.Role)
	assert.True(t, created.IsActive)
	assert.NoError(t, created.CheckPassword(newPwd))

	updated, err := env.UserSvc.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, user.RoleTeacher, updated.Role)
	assert.Equal(t, "DTI", updated.Program)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword(newPwd))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Alice Liddell", "alice@test.cd", "Pa$$w0rd!", user.RoleStudent, "DTI", true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: pwdInput{pwd: newPwd}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "ALICE@test.cd"}, extra: pwdInput{pwd: newPwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswordPrompt(t, tt.extra)
			checkErr(t, tt, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	refreshed, err := env.UserSvc.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NotEqual(t, usr.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword(newPwd))
}
