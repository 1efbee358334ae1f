package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"foodval-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesPerLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := Init(config.LoggingConfig{Directory: dir, MaxSize: 1, MaxBackups: 1, MaxAge: 1})
	require.NoError(t, err)

	log.Info("phase started")
	log.Warn("slow preload")
	_ = log.Sync()

	day := time.Now().Format("2006-01-02")
	info, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%s-info.log", day)))
	require.NoError(t, err)
	assert.Contains(t, string(info), "phase started")
	assert.NotContains(t, string(info), "slow preload")

	warn, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%s-warn.log", day)))
	require.NoError(t, err)
	assert.Contains(t, string(warn), "slow preload")
}
