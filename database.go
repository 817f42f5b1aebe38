package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	// Registers the "postgres" database/sql driver used for schema creation.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// In order to connect to Postgresql you need to fill out all the fields.
//
// To connect to sqlite, you just need to specify the "sqlite" driver.
// By default it will use an in-memory database; set Name to use a file.
type DatabaseConfig struct {
	Name     string
	Schema   string
	Driver   string
	Username string
	Password string
	Host     string
	Port     string
}

// ParseConnectionString parses a connection string and returns a DatabaseConfig.
// "file:..." selects sqlite, postgres:// and postgresql:// URLs select
// Postgresql, and the empty string selects in-memory sqlite.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if connStr == "" {
		return DatabaseConfig{Driver: "sqlite"}, nil
	}

	// SQLite detection: starts with "file:"
	if strings.HasPrefix(connStr, "file:") {
		// Separate path from query
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{
			Name:   parts[0],
			Driver: "sqlite",
		}, nil
	}

	// Postgresql parsing
	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	username := ""
	password := ""
	if user := parsedURL.User; user != nil {
		username = user.Username()
		password, _ = user.Password()
	}

	port := parsedURL.Port()
	if port == "" {
		port = "5432" // default PostgreSQL port
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   parsedURL.Query().Get("search_path"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsedURL.Hostname(),
		Port:     port,
	}, nil
}

// ConnectToDB opens the audit store and migrates its tables.
func ConnectToDB(cnf DatabaseConfig) (*gorm.DB, error) {
	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf)
	case "sqlite", "":
		return connectToSqlite(cnf)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func connectToPostgresql(cnf DatabaseConfig) (*gorm.DB, error) {
	// Create schema if not exists
	if err := ensurePostgresqlSchema(cnf); err != nil {
		return nil, errors.Wrap(err, "failed to ensure Postgresql schema")
	}

	dsn, err := postgresqlDbUrl(cnf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig(cnf))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Postgresql")
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func connectToSqlite(cnf DatabaseConfig) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cnf))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to sqlite")
	}

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func gormConfig(cnf DatabaseConfig) *gorm.Config {
	cfg := &gorm.Config{}
	if cnf.Schema != "" {
		cfg.NamingStrategy = schema.NamingStrategy{
			TablePrefix: cnf.Schema + ".", // schema name
		}
	}
	return cfg
}

func migrate(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(&VerificationRecord{}), "failed to migrate audit tables")
}

func postgresqlDbUrl(cnf DatabaseConfig) (string, error) {
	if cnf.Driver != "postgres" {
		return "", fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}

	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn, nil
}

func ensurePostgresqlSchema(cnf DatabaseConfig) error {
	if cnf.Schema == "" {
		return nil
	}

	dbConf := cnf
	dbConf.Schema = ""
	dsn, err := postgresqlDbUrl(dbConf)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err = db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", cnf.Schema)); err != nil {
		return errors.Wrap(err, "error while creating schema")
	}
	return nil
}
