package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migration represents a database migration. SQL is written once with dialect
// placeholders ({{id}}, {{ref}}, {{ts}}, {{bool}}) expanded by Dialect.expand.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

func (d Dialect) expand(stmt string) string {
	switch d {
	case DialectPostgres:
		return strings.NewReplacer(
			"{{id}}", "BIGSERIAL PRIMARY KEY",
			"{{ref}}", "BIGINT",
			"{{ts}}", "TIMESTAMPTZ",
			"{{bool}}", "BOOLEAN",
		).Replace(stmt)
	default:
		return strings.NewReplacer(
			"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"{{ref}}", "INTEGER",
			"{{ts}}", "TIMESTAMP",
			"{{bool}}", "BOOLEAN",
		).Replace(stmt)
	}
}

// GetMigrations returns all schema migrations in application order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id {{id}},
					username VARCHAR(150) NOT NULL CONSTRAINT users_username_key UNIQUE,
					email VARCHAR(254) NOT NULL CONSTRAINT users_email_key UNIQUE,
					role VARCHAR(16) NOT NULL DEFAULT 'user'
						CONSTRAINT users_role_check CHECK (role IN ('user', 'moderator', 'admin')),
					bio TEXT NOT NULL DEFAULT '',
					first_name VARCHAR(150) NOT NULL DEFAULT '',
					last_name VARCHAR(150) NOT NULL DEFAULT '',
					is_staff {{bool}} NOT NULL DEFAULT FALSE,
					is_superuser {{bool}} NOT NULL DEFAULT FALSE,
					confirmation_code VARCHAR(72),
					code_issued_at {{ts}},
					date_joined {{ts}} NOT NULL,
					last_login {{ts}}
				);
			`,
		},
		{
			Version:     2,
			Description: "Create categories and genres tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS categories (
					id {{id}},
					name VARCHAR(256) NOT NULL CONSTRAINT categories_name_key UNIQUE,
					slug VARCHAR(50) NOT NULL CONSTRAINT categories_slug_key UNIQUE
				);

				CREATE TABLE IF NOT EXISTS genres (
					id {{id}},
					name VARCHAR(256) NOT NULL CONSTRAINT genres_name_key UNIQUE,
					slug VARCHAR(50) NOT NULL CONSTRAINT genres_slug_key UNIQUE
				);
			`,
		},
		{
			Version:     3,
			Description: "Create titles and genre_titles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS titles (
					id {{id}},
					name VARCHAR(256) NOT NULL,
					year INTEGER,
					description TEXT,
					category_id {{ref}} REFERENCES categories(id) ON DELETE SET NULL
				);

				CREATE INDEX IF NOT EXISTS idx_titles_category_id ON titles(category_id);
				CREATE INDEX IF NOT EXISTS idx_titles_year ON titles(year);

				CREATE TABLE IF NOT EXISTS genre_titles (
					id {{id}},
					title_id {{ref}} NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
					genre_id {{ref}} NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
					CONSTRAINT genre_titles_title_genre_key UNIQUE (title_id, genre_id)
				);

				CREATE INDEX IF NOT EXISTS idx_genre_titles_genre_id ON genre_titles(genre_id);
			`,
		},
		{
			Version:     4,
			Description: "Create reviews and comments tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS reviews (
					id {{id}},
					title_id {{ref}} NOT NULL REFERENCES titles(id) ON DELETE CASCADE,
					author_id {{ref}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					text TEXT NOT NULL,
					score SMALLINT NOT NULL CONSTRAINT reviews_score_check CHECK (score BETWEEN 1 AND 10),
					pub_date {{ts}} NOT NULL,
					CONSTRAINT reviews_title_author_key UNIQUE (title_id, author_id)
				);

				CREATE INDEX IF NOT EXISTS idx_reviews_author_id ON reviews(author_id);

				CREATE TABLE IF NOT EXISTS comments (
					id {{id}},
					review_id {{ref}} NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
					author_id {{ref}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					text TEXT NOT NULL,
					pub_date {{ts}} NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_comments_review_id ON comments(review_id);
			`,
		},
		{
			Version:     5,
			Description: "Create audit_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_events (
					id {{id}},
					occurred_at {{ts}} NOT NULL,
					event_type VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					user_id {{ref}},
					username VARCHAR(150) NOT NULL DEFAULT '',
					resource_type VARCHAR(32) NOT NULL DEFAULT '',
					resource_id VARCHAR(255) NOT NULL DEFAULT '',
					request_id VARCHAR(64) NOT NULL DEFAULT '',
					message TEXT NOT NULL DEFAULT '',
					metadata TEXT NOT NULL DEFAULT ''
				);

				CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events(occurred_at);
				CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
			`,
		},
	}
}

// Migrate executes all pending migrations
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		err := WithTx(ctx, db, func(q Querier) error {
			if _, err := q.ExecContext(ctx, dialect.expand(migration.SQL)); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := q.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions[version] = true
	}
	return versions, rows.Err()
}
