package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/365businessdev/alget/internal/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS installs (
    project      TEXT NOT NULL,
    package_id   TEXT NOT NULL,
    name         TEXT NOT NULL,
    publisher    TEXT NOT NULL,
    version      TEXT NOT NULL,
    source       TEXT NOT NULL DEFAULT '',
    path         TEXT NOT NULL,
    installed_at TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'installed',
    PRIMARY KEY (project, package_id)
);
`

// SQLiteJournal records artifact writes across all projects.
type SQLiteJournal struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

func NewSQLite(dbPath string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteJournal{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.recover(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover: %w", err)
	}

	return s, nil
}

// recover drops pending records and deletes the temp files an interrupted
// write left in their package folder. A file already renamed into place is
// complete and stays.
func (s *SQLiteJournal) recover() error {
	rows, err := s.db.Query("SELECT project, package_id, path FROM installs WHERE status = ?", string(domain.InstallPending))
	if err != nil {
		return err
	}

	type pendingInstall struct {
		project   string
		packageID string
		path      string
	}
	var pending []pendingInstall

	for rows.Next() {
		var p pendingInstall
		if err := rows.Scan(&p.project, &p.packageID, &p.path); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, p)
	}
	rows.Close()

	for _, p := range pending {
		log.Warn("Recovering from interrupted install of %s in %s", p.packageID, p.project)

		if p.path != "" {
			leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(p.path), domain.TempFilePattern))
			for _, tmp := range leftovers {
				if err := os.Remove(tmp); err != nil {
					log.Warn("Unable to delete %s: %v", tmp, err)
				}
			}
		}

		if _, err := s.db.Exec("DELETE FROM installs WHERE project = ? AND package_id = ?", p.project, p.packageID); err != nil {
			return fmt.Errorf("failed to delete pending install %s: %w", p.packageID, err)
		}
	}

	return nil
}

func (s *SQLiteJournal) upsert(rec *domain.InstallRecord, status domain.InstallStatus) error {
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now()
	}
	rec.Status = status

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO installs
		(project, package_id, name, publisher, version, source, path, installed_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Project, rec.PackageID, rec.Name, rec.Publisher, rec.Version, rec.Source, rec.Path,
		rec.InstalledAt.UTC().Format(time.RFC3339), string(status))
	return err
}

func (s *SQLiteJournal) BeginInstall(rec *domain.InstallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsert(rec, domain.InstallPending)
}

func (s *SQLiteJournal) CompleteInstall(rec *domain.InstallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsert(rec, domain.InstallCompleted)
}

// Forget drops the record of a package in a project.
func (s *SQLiteJournal) Forget(project, packageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM installs WHERE project = ? AND package_id = ?", project, packageID)
	return err
}

// List returns completed installs, newest first. An empty project lists all.
func (s *SQLiteJournal) List(project string) ([]domain.InstallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT project, package_id, name, publisher, version, source, path, installed_at, status
		FROM installs WHERE status = ?`
	args := []any{string(domain.InstallCompleted)}
	if project != "" {
		query += " AND project = ?"
		args = append(args, project)
	}
	query += " ORDER BY installed_at DESC, package_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.InstallRecord
	for rows.Next() {
		var rec domain.InstallRecord
		var installedAt, status string

		if err := rows.Scan(&rec.Project, &rec.PackageID, &rec.Name, &rec.Publisher, &rec.Version,
			&rec.Source, &rec.Path, &installedAt, &status); err != nil {
			return nil, err
		}

		rec.Status = domain.InstallStatus(status)
		rec.InstalledAt, _ = time.Parse(time.RFC3339, installedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}
