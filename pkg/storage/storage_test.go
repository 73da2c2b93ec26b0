package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db, DialectSQLite))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)
}

func TestDialectExpand(t *testing.T) {
	stmt := "id {{id}}, ref {{ref}}, at {{ts}}"
	assert.Equal(t, "id BIGSERIAL PRIMARY KEY, ref BIGINT, at TIMESTAMPTZ", DialectPostgres.expand(stmt))
	assert.Equal(t, "id INTEGER PRIMARY KEY AUTOINCREMENT, ref INTEGER, at TIMESTAMP", DialectSQLite.expand(stmt))
}

func insertUser(t *testing.T, q Querier, username, email string) error {
	t.Helper()
	_, err := q.ExecContext(context.Background(),
		"INSERT INTO users (username, email, date_joined) VALUES ($1, $2, $3)",
		username, email, time.Now().UTC())
	return err
}

func TestUniqueViolation_SQLite(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, insertUser(t, db, "alice", "alice@example.com"))

	err := insertUser(t, db, "alice", "other@example.com")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, "username", ViolatedColumn(err, "username", "email"))

	err = insertUser(t, db, "bob", "alice@example.com")
	require.Error(t, err)
	assert.Equal(t, "email", ViolatedColumn(err, "username", "email"))
}

func TestUniqueViolation_Postgres(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, "email", ViolatedColumn(err, "username", "email"))

	fk := &pq.Error{Code: "23503"}
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
}

func TestUniqueViolation_Other(t *testing.T) {
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.Equal(t, "", ViolatedColumn(errors.New("username"), "username"))
}

func TestForeignKeys_Enforced(t *testing.T) {
	db := NewTestDB(t)
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO reviews (title_id, author_id, text, score, pub_date) VALUES ($1, $2, $3, $4, $5)",
		999, 999, "text", 5, time.Now().UTC())
	require.Error(t, err)
	assert.True(t, IsForeignKeyViolation(err))
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db := NewTestDB(t)
		err := WithTx(context.Background(), db, func(q Querier) error {
			return insertUser(t, q, "carol", "carol@example.com")
		})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := NewTestDB(t)
		sentinel := errors.New("mail down")
		err := WithTx(context.Background(), db, func(q Querier) error {
			require.NoError(t, insertUser(t, q, "dave", "dave@example.com"))
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
		assert.Equal(t, 0, count)
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no connections"))
		err = WithTx(context.Background(), db, func(q Querier) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))
		err = WithTx(context.Background(), db, func(q Querier) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, _, err := Open(context.Background(), Options{Driver: "oracle", URL: "x"})
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())

	_, err = NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%drama%", ContainsPattern("drama"))
	assert.Equal(t, `%50\%\_off\\%`, ContainsPattern(`50%_off\`))

	db := NewTestDB(t)
	_, err := db.Exec(`INSERT INTO categories (name, slug) VALUES ('Half 50% off', 'half'), ('Half 500 off', 'five')`)
	require.NoError(t, err)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM categories WHERE LOWER(name) LIKE LOWER($1) ESCAPE '\'`,
		ContainsPattern("50%")).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
