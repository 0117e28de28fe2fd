package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storekriti/internal"
	"storekriti/internal/auth"
	"storekriti/internal/config"
	"storekriti/internal/database"
	"storekriti/internal/events"
	"storekriti/internal/pageviews"
	"storekriti/internal/visitors"
)

// Admin credentials installed into the config by CreateMinimalTestApp.
const (
	AdminPassword  = "test-admin-password"
	AdminJWTSecret = "test-admin-jwt-secret"
)

func init() {
	// Packages importing testsupport run against the test environment unless told otherwise.
	if os.Getenv("STOREKRITI_ENV") == "" {
		os.Setenv("STOREKRITI_ENV", config.Test)
	}
}

// testDBCache caches test databases by root test name so that setup helpers
// called from subtests share the same database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates an in-memory test database with all models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager and a quiet logger.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	cfg := config.GetConfig()

	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set STOREKRITI_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes and admin secrets configured.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.AdminPassword = AdminPassword
	appConfig.AdminJWTSecret = AdminJWTSecret

	return createApp(t, db, appConfig)
}

// CreateTestAppWithConfig lets a test adjust the config before the routes are mounted.
// The config is restored when the test ends.
func CreateTestAppWithConfig(t *testing.T, db *gorm.DB, mutate func(cfg *config.Config)) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	saved := *appConfig
	t.Cleanup(func() { *appConfig = saved })

	appConfig.Environment = config.Test
	appConfig.AdminPassword = AdminPassword
	appConfig.AdminJWTSecret = AdminJWTSecret
	mutate(appConfig)

	return createApp(t, db, appConfig)
}

func createApp(t *testing.T, db *gorm.DB, appConfig *config.Config) *fiber.App {
	t.Helper()

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = NewTestDBManager(db)
	// Enable SecFetchSite validation in tests to match production behavior
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// AdminToken issues a valid admin token signed with AdminJWTSecret.
func AdminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.NewIssuer(AdminJWTSecret).Issue(time.Now())
	require.NoError(t, err)
	return token
}

// JSONRequest builds a browser-like JSON request.
func JSONRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	return req
}

// AdminRequest is JSONRequest with a bearer token attached.
func AdminRequest(method, target, token string) *http.Request {
	req := JSONRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// DecodeBody reads and decodes a JSON response body.
func DecodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// SeedPageview inserts a pageview at ts directly.
func SeedPageview(t *testing.T, db *gorm.DB, visitorID, sessionID, path string, ts time.Time) *pageviews.Pageview {
	t.Helper()
	require.NoError(t, visitors.Touch(db, visitorID, ts))
	pv := &pageviews.Pageview{
		SessionID: sessionID,
		VisitorID: visitorID,
		Path:      path,
		Timestamp: ts.UTC(),
	}
	require.NoError(t, pageviews.Create(db, pv))
	return pv
}

// SeedEvent inserts an event at ts directly.
func SeedEvent(t *testing.T, db *gorm.DB, visitorID, sessionID, name string, ts time.Time) *events.Event {
	t.Helper()
	e := &events.Event{
		SessionID: sessionID,
		VisitorID: visitorID,
		Name:      name,
		Path:      "/",
		Timestamp: ts.UTC(),
	}
	require.NoError(t, events.Create(db, e))
	return e
}
