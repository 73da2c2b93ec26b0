package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseProbe(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr string
	}{
		{
			name: "migrated",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPing()
				mock.ExpectQuery("SELECT MAX\\(version\\) FROM schema_migrations").
					WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(3))
			},
		},
		{
			name: "ping fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPing().WillReturnError(errors.New("connection refused"))
			},
			wantErr: "connection refused",
		},
		{
			name: "missing ledger",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPing()
				mock.ExpectQuery("SELECT MAX").WillReturnError(errors.New("relation does not exist"))
			},
			wantErr: "schema not readable",
		},
		{
			name: "nothing applied",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectPing()
				mock.ExpectQuery("SELECT MAX").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
			},
			wantErr: "no migrations applied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			err = DatabaseProbe{DB: db}.Check(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type stubProbe struct {
	name     string
	critical bool
	err      error
}

func (p stubProbe) Name() string                    { return p.name }
func (p stubProbe) Critical() bool                  { return p.critical }
func (p stubProbe) Check(ctx context.Context) error { return p.err }

func TestHealthChecker_Check(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name   string
		probes []Probe
		want   string
	}{
		{"no probes", nil, StatusHealthy},
		{"all pass", []Probe{stubProbe{name: "db", critical: true}}, StatusHealthy},
		{"critical fails", []Probe{stubProbe{name: "db", critical: true, err: down}, stubProbe{name: "cache"}}, StatusUnhealthy},
		{"optional fails", []Probe{stubProbe{name: "db", critical: true}, stubProbe{name: "cache", err: down}}, StatusDegraded},
		{"degraded result", []Probe{stubProbe{name: "db", critical: true, err: errDegraded{"pool exhausted"}}}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewHealthChecker("test", tt.probes...).Check(context.Background())
			assert.Equal(t, tt.want, status.Status)
			assert.Len(t, status.Dependencies, len(tt.probes))
		})
	}
}

func TestRedisProbe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	probe := RedisProbe{Client: client}
	assert.False(t, probe.Critical())
	assert.NoError(t, probe.Check(context.Background()))

	mr.Close()
	assert.Error(t, probe.Check(context.Background()))
}

func TestHealthRoutes(t *testing.T) {
	serveMux := http.NewServeMux()
	RegisterHealthRoutes(serveMux, NewHealthChecker("1.2.3", stubProbe{name: "database", critical: true, err: errors.New("down")}))

	rec := httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	serveMux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, "down", body.Dependencies["database"].Message)
}
