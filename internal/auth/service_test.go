package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/shared"
	"github.com/huiui/hello-antd-role/internal/testing/memstore"
	"github.com/huiui/hello-antd-role/internal/token"
	_ "github.com/huiui/hello-antd-role/testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newService(t *testing.T, repo auth.Repository) (*auth.Service, *token.Service) {
	t.Helper()
	hasher, err := auth.NewHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	tokens, err := token.NewService(testSecret, time.Hour, "test")
	require.NoError(t, err)
	return auth.NewService(repo, hasher, tokens), tokens
}

func validInput(username string) auth.RegisterInput {
	return auth.RegisterInput{
		Username:        username,
		Password:        "s3cret!",
		ConfirmPassword: "s3cret!",
		Email:           username + "@example.com",
	}
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	store := memstore.New()
	svc, tokens := newService(t, store)

	sess, err := svc.Register(context.Background(), validInput("alice"))
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
	assert.NotEqual(t, "s3cret!", sess.User.PasswordHash)

	id, err := tokens.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.UserID)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	store := memstore.New()
	svc, _ := newService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput("alice"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, validInput("alice"))
	var cerr *shared.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "username", cerr.Field)
	assert.Equal(t, "The username is taken", cerr.Message)
	assert.Equal(t, 1, store.UserCount())
}

func TestRegisterUsernameIsCaseInsensitive(t *testing.T) {
	store := memstore.New()
	svc, _ := newService(t, store)
	ctx := context.Background()

	_, err := svc.Register(ctx, validInput("Alice"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, validInput("aLICE"))
	var cerr *shared.ConflictError
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, store.UserCount())
}

// racyRepo hides existing users from the pre-insert lookup so the storage
// constraint is the only thing left to catch the duplicate.
type racyRepo struct {
	*memstore.Store
}

func (racyRepo) FindByUsername(context.Context, string) (*auth.User, error) {
	return nil, shared.ErrNotFound
}

func TestRegisterConcurrentDuplicateHitsConstraint(t *testing.T) {
	store := memstore.New()
	svc, _ := newService(t, racyRepo{store})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), validInput("bob"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var cerr *shared.ConflictError
		assert.ErrorAs(t, err, &cerr)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, store.UserCount())
}

func TestRegisterCollectsEveryViolation(t *testing.T) {
	svc, _ := newService(t, memstore.New())

	_, err := svc.Register(context.Background(), auth.RegisterInput{
		Password:        "abc",
		ConfirmPassword: "xyz",
		Email:           "not-an-email",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Username is required", verr.Fields["username"])
	assert.Equal(t, "Password must be at least 6 characters", verr.Fields["password"])
	assert.Equal(t, "Passwords must match", verr.Fields["confirmPassword"])
	assert.Equal(t, "Email is invalid", verr.Fields["email"])
}

func TestAuthenticateReasons(t *testing.T) {
	store := memstore.New()
	svc, _ := newService(t, store)
	ctx := context.Background()
	_, err := svc.Register(ctx, validInput("carol"))
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "CAROL", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)

	var aerr *shared.AuthenticationError
	_, err = svc.Authenticate(ctx, "carol", "wrong")
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, shared.AuthWrongCredentials, aerr.Reason)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret!")
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, shared.AuthUserNotFound, aerr.Reason)
}

func TestLoginRequiresFields(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	_, err := svc.Login(context.Background(), auth.LoginInput{})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
}

func TestCurrentUserDeletedIsUnauthorized(t *testing.T) {
	svc, _ := newService(t, memstore.New())
	_, err := svc.CurrentUser(context.Background(), token.Identity{UserID: 404})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}
