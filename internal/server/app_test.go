package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/expensebook/expensebook/internal/dbx"
	"github.com/expensebook/expensebook/internal/server/config"
	"github.com/expensebook/expensebook/internal/server/repositories/friends"
	"github.com/expensebook/expensebook/internal/server/repositories/repomanager"
	"github.com/expensebook/expensebook/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoManager struct {
	migrateErr error
	migrated   bool
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated = true
	return m.migrateErr
}
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository     { return users.NewPostgresRepository(db) }
func (m *fakeRepoManager) Friends(db dbx.DBTX) friends.Repository { return friends.NewPostgresRepository(db) }

func validConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddrHTTP = "127.0.0.1:0"
	cfg.AccessTokenSecret = "access"
	cfg.RefreshTokenSecret = "refresh"
	cfg.LogLevel = "error"
	return cfg
}

// stubSeams points openDB at sqlmock and the repository manager at a fake.
func stubSeams(t *testing.T, rm *fakeRepoManager) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	origOpen, origRM := openDB, newRepositoryManager
	openDB = func(string) (*sql.DB, error) { return db, nil }
	newRepositoryManager = func() repomanager.RepositoryManager { return rm }
	t.Cleanup(func() {
		openDB, newRepositoryManager = origOpen, origRM
	})

	return mock
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.AccessTokenSecret = ""

	app, err := NewApp(context.Background(), cfg)

	assert.Nil(t, app)
	assert.ErrorContains(t, err, "invalid config")
}

func TestNewApp_Success(t *testing.T) {
	rm := &fakeRepoManager{}
	mock := stubSeams(t, rm)
	mock.ExpectPing()
	mock.ExpectClose()

	app, err := NewApp(context.Background(), validConfig())
	require.NoError(t, err)

	assert.True(t, rm.migrated)
	assert.NotNil(t, app.server)
	assert.Nil(t, app.redis)

	require.NoError(t, app.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_WithRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)

	mock := stubSeams(t, &fakeRepoManager{})
	mock.ExpectPing()
	mock.ExpectClose()

	cfg := validConfig()
	cfg.RedisAddr = mr.Addr()

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, app.redis)

	require.NoError(t, app.Close())
}

func TestNewApp_PingFails(t *testing.T) {
	mock := stubSeams(t, &fakeRepoManager{})
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, err := NewApp(context.Background(), validConfig())

	assert.ErrorContains(t, err, "db ping error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_MigrationsFail(t *testing.T) {
	mock := stubSeams(t, &fakeRepoManager{migrateErr: errors.New("migrate: boom")})
	mock.ExpectPing()
	mock.ExpectClose()

	_, err := NewApp(context.Background(), validConfig())

	assert.ErrorContains(t, err, "migrate: boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_OpenFails(t *testing.T) {
	orig := openDB
	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }
	t.Cleanup(func() { openDB = orig })

	_, err := NewApp(context.Background(), validConfig())

	assert.ErrorContains(t, err, "db init error")
}

func TestRun_ReturnsWhenContextCancelled(t *testing.T) {
	mock := stubSeams(t, &fakeRepoManager{})
	mock.ExpectPing()
	mock.ExpectClose()

	app, err := NewApp(context.Background(), validConfig())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
