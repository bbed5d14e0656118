package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hotelsync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	seedRooms(t, db, "grand", "101")

	s := NewBackupService(db, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)

		copyDB, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer copyDB.Close()
		tenants, err := copyDB.ListTenants(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"grand"}, tenants)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		foreign := filepath.Join(storagePath, "keep.txt")
		require.NoError(t, os.WriteFile(foreign, []byte("x"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(foreign, oldTime, oldTime))

		s.CleanupOldBackups()

		_, err := os.Stat(oldFile)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(foreign)
		assert.NoError(t, err)
	})

	t.Run("Disabled", func(t *testing.T) {
		off := NewBackupService(db, config.BackupConfig{}, &logger)
		off.Start(context.Background())
	})
}
