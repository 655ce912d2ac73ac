//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/zulandar/stopyard/internal/config"
)

// mysqlConfig reads the server under test from STOPYARD_TEST_MYSQL_HOST and
// STOPYARD_TEST_MYSQL_PORT, skipping when unset.
func mysqlConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	host := os.Getenv("STOPYARD_TEST_MYSQL_HOST")
	if host == "" {
		t.Skip("STOPYARD_TEST_MYSQL_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("STOPYARD_TEST_MYSQL_PORT"))
	if port == 0 {
		port = 3306
	}
	return config.DatabaseConfig{
		Driver:   "mysql",
		Host:     host,
		Port:     port,
		User:     "root",
		Password: os.Getenv(config.EnvDBPassword),
		Database: "stopyard_it",
	}
}

func TestIntegration_CreateMigrateDrop(t *testing.T) {
	cfg := mysqlConfig(t)

	admin, err := ConnectAdmin(cfg)
	if err != nil {
		t.Fatalf("ConnectAdmin: %v", err)
	}
	if err := CreateDatabase(admin, cfg.Database); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	t.Cleanup(func() { DropDatabase(admin, cfg.Database) })

	gdb, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := SeedCenters(gdb, []config.CenterConfig{{Code: "1089", Name: "Usina"}}); err != nil {
		t.Fatalf("SeedCenters: %v", err)
	}
	if !gdb.Migrator().HasTable("maintenance_stops") {
		t.Error("maintenance_stops missing after migrate")
	}
}
