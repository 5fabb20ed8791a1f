package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/platemetrics/delivery-api/internal/database"
	"github.com/platemetrics/delivery-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedLocation(t *testing.T, db *gorm.DB, clientID uuid.UUID, name string) *domain.Location {
	t.Helper()
	loc := &domain.Location{ClientID: clientID, Name: name}
	require.NoError(t, db.Create(loc).Error)
	return loc
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
