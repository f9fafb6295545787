// Package db provides PostgreSQL storage for the image-description research platform.
//
// This file implements connection lifecycle management and schema migration.
// Per-entity query logic (participants, consent, payments, images, submissions,
// stats, rewards, audit, metrics) lives in its own file in this package, as
// methods on the single Database type below.
//
// Dependencies:
// - PostgreSQL 12+
// - lib/pq driver for database/sql
package db

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/research-platform/imagedesc-core/internal/logger"
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Database represents the database connection
type Database struct {
	db *sql.DB
}

var (
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]{0,253}[a-zA-Z0-9])?$`)
	dbIdentPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	acceptedSSLModes = map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
)

// validateConfig rejects a Config whose fields could otherwise be
// interpolated unescaped into the connection string below (host/port/user/
// dbname/sslmode all feed fmt.Sprintf, not a parameterized connector).
func validateConfig(config Config) error {
	if config.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if net.ParseIP(config.Host) == nil && !hostnamePattern.MatchString(config.Host) {
		return fmt.Errorf("invalid database host: %s", config.Host)
	}

	port, err := strconv.Atoi(config.Port)
	if config.Port == "" || err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid database port: %s (must be 1-65535)", config.Port)
	}

	if config.User == "" || !dbIdentPattern.MatchString(config.User) {
		return fmt.Errorf("invalid database user: %s (only alphanumeric, underscore, and hyphen allowed)", config.User)
	}

	if config.DBName == "" || !dbIdentPattern.MatchString(config.DBName) {
		return fmt.Errorf("invalid database name: %s (only alphanumeric, underscore, and hyphen allowed)", config.DBName)
	}

	if config.SSLMode != "" && !acceptedSSLModes[config.SSLMode] {
		modes := make([]string, 0, len(acceptedSSLModes))
		for m := range acceptedSSLModes {
			modes = append(modes, m)
		}
		return fmt.Errorf("invalid SSL mode: %s (must be one of: %s)", config.SSLMode, strings.Join(modes, ", "))
	}

	if config.SSLMode == "" || config.SSLMode == "disable" {
		logger.Database().Warn().Msg("database SSL/TLS is disabled; set sslmode in DATABASE_URL to require, verify-ca, or verify-full for production")
	}

	return nil
}

// NewDatabase creates a new database connection with connection pooling
func NewDatabase(config Config) (*Database, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: sqlDB}, nil
}

// NewDatabaseForTesting creates a Database from an existing sql.DB connection.
// For use with sqlmock in tests only.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{db: sqlDB}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB
func (d *Database) DB() *sql.DB {
	return d.db
}

// SchemaVersion is bumped whenever a migration is appended; recorded in schema_migrations.
const SchemaVersion = 1

// Migrate runs database migrations. Every statement is idempotent so this can run
// on every process start without a separate migration tool.
func (d *Database) Migrate() error {
	if err := d.checkSchemaVersion(); err != nil {
		return err
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS participants (
			id SERIAL PRIMARY KEY,
			participant_id VARCHAR(100) UNIQUE NOT NULL,
			session_id VARCHAR(100) NOT NULL,
			username VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			phone VARCHAR(20),
			gender VARCHAR(50) NOT NULL,
			age INT NOT NULL,
			place VARCHAR(255),
			native_language VARCHAR(100) NOT NULL,
			prior_experience VARCHAR(255),
			payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			consent_given BOOLEAN NOT NULL DEFAULT false,
			consent_timestamp TIMESTAMP,
			ip_hash VARCHAR(64) NOT NULL,
			user_agent VARCHAR(500),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT chk_participants_age CHECK (age BETWEEN 1 AND 120),
			CONSTRAINT chk_participants_email CHECK (email ~ '^[^\s@]+@[^\s@]+\.[^\s@]+$'),
			CONSTRAINT chk_participants_payment_status CHECK (payment_status IN ('pending','paid','refunded','failed'))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_participant_id ON participants(participant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_ip_hash ON participants(ip_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_created_at ON participants(created_at)`,

		`CREATE TABLE IF NOT EXISTS consent_records (
			id SERIAL PRIMARY KEY,
			participant_fk INT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
			consent_given BOOLEAN NOT NULL,
			ip_hash VARCHAR(64) NOT NULL,
			user_agent VARCHAR(500),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consent_records_participant_fk ON consent_records(participant_fk)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			participant_fk INT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
			order_id VARCHAR(100) UNIQUE NOT NULL,
			payment_id VARCHAR(100) UNIQUE,
			signature VARCHAR(255),
			amount BIGINT NOT NULL,
			currency VARCHAR(8) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'created',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			confirmed_at TIMESTAMP,
			CONSTRAINT chk_payments_amount CHECK (amount > 0),
			CONSTRAINT chk_payments_status CHECK (status IN ('created','paid','failed','refunded'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_participant_fk ON payments(participant_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,

		`CREATE TABLE IF NOT EXISTS images (
			id SERIAL PRIMARY KEY,
			image_id VARCHAR(200) UNIQUE NOT NULL,
			url TEXT NOT NULL,
			width INT,
			height INT,
			object_count INT,
			difficulty VARCHAR(50),
			seeded_from VARCHAR(50),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_images_image_id ON images(image_id)`,

		`CREATE TABLE IF NOT EXISTS attention_checks (
			id SERIAL PRIMARY KEY,
			image_fk INT NOT NULL UNIQUE REFERENCES images(id) ON DELETE CASCADE,
			expected_keyword VARCHAR(100) NOT NULL,
			strict BOOLEAN NOT NULL DEFAULT false,
			active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attention_checks_active ON attention_checks(active)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id SERIAL PRIMARY KEY,
			submission_id VARCHAR(64) UNIQUE NOT NULL,
			participant_fk INT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
			image_fk INT NOT NULL REFERENCES images(id) ON DELETE RESTRICT,
			session_id VARCHAR(100) NOT NULL,
			survey_index INT NOT NULL,
			description TEXT NOT NULL,
			description_hash VARCHAR(64) NOT NULL,
			word_count INT NOT NULL,
			rating INT NOT NULL,
			feedback VARCHAR(2000),
			time_spent_seconds INT NOT NULL,
			is_survey BOOLEAN NOT NULL DEFAULT false,
			is_attention BOOLEAN NOT NULL DEFAULT false,
			attention_passed BOOLEAN,
			too_fast_flag BOOLEAN NOT NULL DEFAULT false,
			quality_score DOUBLE PRECISION,
			ai_suspected BOOLEAN NOT NULL DEFAULT false,
			ip_hash VARCHAR(64) NOT NULL,
			user_agent VARCHAR(500),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT chk_submissions_rating CHECK (rating BETWEEN 1 AND 10),
			CONSTRAINT chk_submissions_word_count CHECK (word_count BETWEEN 0 AND 10000),
			CONSTRAINT chk_submissions_description_len CHECK (char_length(description) BETWEEN 1 AND 10000),
			CONSTRAINT chk_submissions_quality_score CHECK (quality_score IS NULL OR quality_score BETWEEN 0 AND 1),
			CONSTRAINT chk_submissions_attention_passed CHECK (NOT is_attention OR attention_passed IS NOT NULL),
			CONSTRAINT chk_submissions_ai_suspected CHECK (NOT ai_suspected OR quality_score IS NOT NULL)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_participant_fk ON submissions(participant_fk)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_image_fk ON submissions(image_fk)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_participant_survey_index ON submissions(participant_fk, survey_index)`,

		`CREATE TABLE IF NOT EXISTS attention_stats (
			participant_fk INT PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
			total_checks INT NOT NULL DEFAULT 0,
			passed_checks INT NOT NULL DEFAULT 0,
			failed_checks INT NOT NULL DEFAULT 0,
			attention_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_flagged BOOLEAN NOT NULL DEFAULT false,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT chk_attention_totals CHECK (total_checks = passed_checks + failed_checks)
		)`,

		`CREATE TABLE IF NOT EXISTS participant_stats (
			participant_fk INT PRIMARY KEY REFERENCES participants(id) ON DELETE CASCADE,
			total_words INT NOT NULL DEFAULT 0,
			total_submissions INT NOT NULL DEFAULT 0,
			survey_rounds INT NOT NULL DEFAULT 0,
			attention_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			priority_eligible BOOLEAN NOT NULL DEFAULT false,
			last_reward_attempt_at TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS reward_winners (
			id SERIAL PRIMARY KEY,
			participant_fk INT NOT NULL UNIQUE REFERENCES participants(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			selected_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			paid_at TIMESTAMP,
			CONSTRAINT chk_reward_winners_amount CHECK (amount > 0),
			CONSTRAINT chk_reward_winners_status CHECK (status IN ('pending','paid','cancelled'))
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(100) NOT NULL,
			participant_fk INT REFERENCES participants(id) ON DELETE SET NULL,
			endpoint VARCHAR(255),
			method VARCHAR(10),
			status_code INT,
			ip_hash VARCHAR(64),
			user_agent VARCHAR(500),
			details VARCHAR(2000),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_event_type ON audit_log(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_participant_fk ON audit_log(participant_fk)`,

		`CREATE TABLE IF NOT EXISTS performance_metrics (
			id BIGSERIAL PRIMARY KEY,
			endpoint VARCHAR(255) NOT NULL,
			response_time_ms INT NOT NULL,
			status_code INT NOT NULL,
			request_size INT,
			response_size INT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT chk_performance_metrics_response_time CHECK (response_time_ms >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_performance_metrics_endpoint ON performance_metrics(endpoint)`,
		`CREATE INDEX IF NOT EXISTS idx_performance_metrics_created_at ON performance_metrics(created_at)`,

		// Audit triggers: every participant/consent/submission insert gets a matching
		// audit_log row in the same transaction, so auditing can never be skipped by a
		// caller forgetting to log it.
		`CREATE OR REPLACE FUNCTION trg_fn_participant_created_audit() RETURNS TRIGGER AS $$
		BEGIN
			INSERT INTO audit_log (event_type, participant_fk, details)
			VALUES ('participant_created', NEW.id, 'participant_id=' || NEW.participant_id);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_participant_created_audit') THEN
				CREATE TRIGGER trg_participant_created_audit
				AFTER INSERT ON participants
				FOR EACH ROW EXECUTE FUNCTION trg_fn_participant_created_audit();
			END IF;
		END
		$$`,

		`CREATE OR REPLACE FUNCTION trg_fn_consent_recorded_audit() RETURNS TRIGGER AS $$
		BEGIN
			INSERT INTO audit_log (event_type, participant_fk, details)
			VALUES ('consent_recorded', NEW.participant_fk, 'consent_given=' || NEW.consent_given::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_consent_recorded_audit') THEN
				CREATE TRIGGER trg_consent_recorded_audit
				AFTER INSERT ON consent_records
				FOR EACH ROW EXECUTE FUNCTION trg_fn_consent_recorded_audit();
			END IF;
		END
		$$`,

		`CREATE OR REPLACE FUNCTION trg_fn_submission_created_audit() RETURNS TRIGGER AS $$
		BEGIN
			INSERT INTO audit_log (event_type, participant_fk, details)
			VALUES ('submission_created', NEW.participant_fk,
				'submission_id=' || NEW.submission_id || ' word_count=' || NEW.word_count);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_submission_created_audit') THEN
				CREATE TRIGGER trg_submission_created_audit
				AFTER INSERT ON submissions
				FOR EACH ROW EXECUTE FUNCTION trg_fn_submission_created_audit();
			END IF;
		END
		$$`,

		`INSERT INTO schema_migrations (version) VALUES (1) ON CONFLICT (version) DO NOTHING`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, migration)
		}
	}

	return nil
}

// checkSchemaVersion refuses to run against a database whose recorded schema
// version is newer than this binary's SchemaVersion — downgrades are
// rejected per spec.md §4.1 rather than silently reapplying older
// migrations over newer objects.
func (d *Database) checkSchemaVersion() error {
	var existing sql.NullInt64
	err := d.db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&existing)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "42P01" {
			return nil // schema_migrations doesn't exist yet: first run
		}
		return nil // table not queryable for another reason; let migration proceed and surface the real error
	}
	if existing.Valid && existing.Int64 > SchemaVersion {
		return fmt.Errorf("refusing to downgrade schema: database is at version %d, binary supports version %d", existing.Int64, SchemaVersion)
	}
	return nil
}
