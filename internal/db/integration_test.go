//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/benchdesk/internal/models"
)

// mysqlOptions reads the test server address from BENCHDESK_TEST_MYSQL_HOST
// and BENCHDESK_TEST_MYSQL_PORT.
func mysqlOptions(t *testing.T) Options {
	t.Helper()
	host := os.Getenv("BENCHDESK_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("BENCHDESK_TEST_MYSQL_HOST not set")
	}
	port := 3306
	if p := os.Getenv("BENCHDESK_TEST_MYSQL_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("BENCHDESK_TEST_MYSQL_PORT: %v", err)
		}
		port = n
	}
	return Options{
		Driver:   DriverMySQL,
		Host:     host,
		Port:     port,
		Database: "benchdesk_test",
		User:     "root",
		Password: os.Getenv("BENCHDESK_TEST_MYSQL_PASSWORD"),
	}
}

func TestIntegration_MySQLMigrate(t *testing.T) {
	opts := mysqlOptions(t)

	admin, err := ConnectAdmin(opts)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(admin, opts.Database); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	t.Cleanup(func() { admin.Exec("DROP DATABASE IF EXISTS `" + opts.Database + "`") })

	db, err := Connect(opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := db.Create(&models.Submission{ID: "it-1", Outcome: "created"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got models.Submission
	if err := db.First(&got, "id = ?", "it-1").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Outcome != "created" {
		t.Errorf("Outcome = %q", got.Outcome)
	}
}
