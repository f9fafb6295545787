package scheduler

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/research-platform/imagedesc-core/internal/db"
)

func TestSchedulerStartRegistersJobsAndStops(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	database := db.NewDatabaseForTesting(mockDB)
	s := New(database, nil, nil, DefaultConfig(), zerolog.Nop())

	require.NoError(t, s.Start())
	s.Stop()
}

func TestDefaultConfigUsesNinetyDayRetention(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 90*24*60*60*1e9, float64(cfg.AuditRetention))
}
