package logger

import (
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLoggerDropsBoundParams(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: NewGormLogger(zap.New(core), gormlogger.Info, time.Minute),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var out string
	require.NoError(t, db.Raw(`SELECT ?`, "digest-4f2a9c").Scan(&out).Error)
	assert.Equal(t, "digest-4f2a9c", out)

	entries := logs.FilterMessage("db.query").All()
	require.NotEmpty(t, entries)
	for _, entry := range entries {
		sql, _ := entry.ContextMap()["sql"].(string)
		assert.False(t, strings.Contains(sql, "digest-4f2a9c"), sql)
	}
}
