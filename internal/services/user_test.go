package services

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SigNoz/storefront-go-app/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(env *testEnv) *UserService {
	return NewUserService(env.db, env.metrics, env.logger)
}

func TestCreateUser_DefaultsToCustomer(t *testing.T) {
	env := newTestEnv(t)
	users := newUserService(env)

	env.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, name, role) VALUES (?, ?, ?)")).
		WithArgs("ada@example.com", "Ada", models.RoleCustomer).
		WillReturnResult(sqlmock.NewResult(7, 1))

	user, err := users.CreateUser(context.Background(), models.CreateUserRequest{Email: " ada@example.com ", Name: "Ada"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, models.RoleCustomer, user.Role)
	env.verify(t)
}

func TestCreateUser_Errors(t *testing.T) {
	env := newTestEnv(t)
	users := newUserService(env)
	ctx := context.Background()

	_, err := users.CreateUser(ctx, models.CreateUserRequest{Email: "not-an-email", Name: "Ada"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = users.CreateUser(ctx, models.CreateUserRequest{Email: "ada@example.com", Name: "Ada", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	env.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ada@example.com' for key 'uq_users_email'"})

	_, err = users.CreateUser(ctx, models.CreateUserRequest{Email: "ada@example.com", Name: "Ada", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrUserExists)
	env.verify(t)
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	users := newUserService(env)
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT id, email, name, role, created_at FROM users WHERE id = ?")

	env.mock.ExpectQuery(query).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "role", "created_at"}).
			AddRow(int64(7), "ada@example.com", "Ada", "manager", fixedNow))
	env.mock.ExpectQuery(query).WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "role", "created_at"}))

	user, err := users.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)

	_, err = users.GetUser(ctx, 8)
	assert.True(t, IsNotFound(err))
	env.verify(t)
}

func TestRoleOf(t *testing.T) {
	env := newTestEnv(t)
	users := newUserService(env)

	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users WHERE id = ?")).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("support"))
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT role FROM users WHERE id = ?")).WithArgs(int64(8)).
		WillReturnError(errors.New("bad connection"))

	role, err := users.RoleOf(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSupport, role)

	_, err = users.RoleOf(context.Background(), 8)
	assert.Error(t, err)
	env.verify(t)
}
