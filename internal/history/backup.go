package history

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const backupPrefix = "chat_history-"

// Backup writes a consistent snapshot of the database to the backup directory
// and removes the oldest snapshots beyond the configured keep count.
// VACUUM INTO produces a compacted copy without blocking the single writer
// for the duration of a file copy.
func (m *Manager) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.cfg.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	name := backupPrefix + time.Now().UTC().Format("20060102-150405") + ".db"
	dest := filepath.Join(m.cfg.BackupDir, name)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		// A partial file from a failed vacuum must not count as a backup.
		os.Remove(dest)
		return "", fmt.Errorf("backup failed: %w", err)
	}

	if err := m.sweepBackups(); err != nil {
		log.Printf("history: backup sweep failed: %v", err)
	}

	return dest, nil
}

// sweepBackups deletes all but the newest BackupsKept snapshots. Timestamped
// names sort lexicographically in age order.
func (m *Manager) sweepBackups() error {
	entries, err := os.ReadDir(m.cfg.BackupDir)
	if err != nil {
		return err
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".db") {
			backups = append(backups, e.Name())
		}
	}

	keep := m.cfg.BackupsKept
	if keep <= 0 || len(backups) <= keep {
		return nil
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-keep] {
		if err := os.Remove(filepath.Join(m.cfg.BackupDir, name)); err != nil {
			return err
		}
	}
	return nil
}

// Start runs prune and backup on startup and then on the configured interval.
func (m *Manager) Start() {
	go m.loop(func(ctx context.Context) {
		if err := m.Prune(ctx); err != nil {
			log.Printf("history: prune failed: %v", err)
		}
		if _, err := m.Backup(ctx); err != nil {
			log.Printf("history: %v", err)
		}
	})
}

func (m *Manager) Stop() {
	select {
	case <-m.stopChan:
		return
	default:
		close(m.stopChan)
	}
}

func (m *Manager) loop(runFn func(ctx context.Context)) {
	// Run on startup as well as by interval.
	runFn(context.Background())

	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			runFn(context.Background())
		}
	}
}
