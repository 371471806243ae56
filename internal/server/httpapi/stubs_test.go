package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/expensebook/expensebook/internal/logging"
	"github.com/expensebook/expensebook/internal/server/auth"
	"github.com/expensebook/expensebook/internal/server/config"
	"github.com/expensebook/expensebook/internal/server/models"
	"github.com/expensebook/expensebook/internal/server/services"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type stubUsers struct {
	register      func(context.Context, services.RegisterInput) (*models.UserView, error)
	login         func(context.Context, services.LoginInput) (*services.LoginResult, error)
	logout        func(context.Context, string) error
	refresh       func(context.Context, string) (*services.TokenPair, error)
	changePwd     func(context.Context, string, string, string) error
	updateProfile func(context.Context, string, models.ProfileUpdate) (*models.UserView, error)
	currentUser   func(context.Context, string) (*models.UserView, error)
}

func (s *stubUsers) Register(ctx context.Context, in services.RegisterInput) (*models.UserView, error) {
	return s.register(ctx, in)
}

func (s *stubUsers) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	return s.login(ctx, in)
}

func (s *stubUsers) Logout(ctx context.Context, userID string) error {
	return s.logout(ctx, userID)
}

func (s *stubUsers) RefreshAccessToken(ctx context.Context, token string) (*services.TokenPair, error) {
	return s.refresh(ctx, token)
}

func (s *stubUsers) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return s.changePwd(ctx, userID, oldPassword, newPassword)
}

func (s *stubUsers) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.UserView, error) {
	return s.updateProfile(ctx, userID, upd)
}

func (s *stubUsers) CurrentUser(ctx context.Context, userID string) (*models.UserView, error) {
	return s.currentUser(ctx, userID)
}

type stubFriends struct {
	create func(context.Context, string, services.CreateFriendInput) (*models.Friend, error)
	list   func(context.Context, string) ([]models.Friend, error)
	find   func(context.Context, string, string) ([]models.Friend, error)
}

func (s *stubFriends) CreateFriend(ctx context.Context, ownerID string, in services.CreateFriendInput) (*models.Friend, error) {
	return s.create(ctx, ownerID, in)
}

func (s *stubFriends) ListFriends(ctx context.Context, ownerID string) ([]models.Friend, error) {
	return s.list(ctx, ownerID)
}

func (s *stubFriends) FindFriends(ctx context.Context, ownerID, name string) ([]models.Friend, error) {
	return s.find(ctx, ownerID, name)
}

type stubAvatars struct {
	upload func(context.Context, string) (*services.AvatarUpload, error)
	url    func(context.Context, string) (string, error)
}

func (s *stubAvatars) IssueUploadURL(ctx context.Context, userID string) (*services.AvatarUpload, error) {
	return s.upload(ctx, userID)
}

func (s *stubAvatars) AvatarURL(ctx context.Context, userID string) (string, error) {
	return s.url(ctx, userID)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

// ---- fixture ----

const testUserID = "0b4b6c4e-7a7c-4d7e-9a53-2b0d3d7b1f10"

var testIdentity = auth.Identity{
	UserID:   testUserID,
	Username: "alice",
	Email:    "alice@example.com",
	FullName: "Alice Liddell",
}

type fixture struct {
	server  *Server
	issuer  *auth.TokenIssuer
	users   *stubUsers
	friends *stubFriends
	avatars *stubAvatars
}

func testConfig() *config.Config {
	return &config.Config{
		EndpointAddrHTTP:             "127.0.0.1:0",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 24 * time.Hour,
		CookieSecure:                 true,
		CORSOrigin:                   "*",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fx := &fixture{
		issuer:  auth.NewTokenIssuer("access-secret", time.Hour, "refresh-secret", 24*time.Hour),
		users:   &stubUsers{},
		friends: &stubFriends{},
		avatars: &stubAvatars{},
	}
	fx.server = NewServer(testConfig(), logging.Nop{}, Deps{
		Users:   fx.users,
		Friends: fx.friends,
		Avatars: fx.avatars,
		Tokens:  fx.issuer,
		DB:      stubPinger{},
	})
	return fx
}

func (fx *fixture) accessToken(t *testing.T) string {
	t.Helper()
	tok, err := fx.issuer.IssueAccess(testIdentity)
	require.NoError(t, err)
	return tok
}

// response is the decoded envelope with the payload left raw.
type response struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (fx *fixture) do(t *testing.T, req *http.Request) (*http.Response, response) {
	t.Helper()

	resp, err := fx.server.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (fx *fixture) doAuthed(t *testing.T, req *http.Request) (*http.Response, response) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+fx.accessToken(t))
	return fx.do(t, req)
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
