// Package backup writes periodic point-in-time snapshot files of the ledger
// and keeps a bounded number of them.
package backup

import (
	"cmp"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
)

const (
	filePrefix = "inventory_backup_"
	fileSuffix = ".json.gz"
	timeLayout = "20060102_150405.000"

	// legacyLayout names files written before millisecond stamps.
	legacyLayout = "20060102_150405"

	DefaultInterval = 10 * time.Minute
	DefaultRetain   = 20
)

var ErrInvalidFile = errors.New("not a backup file")

// Source produces a consistent copy of the whole store.
type Source interface {
	Snapshot(ctx context.Context) (*ledger.Snapshot, error)
}

// Restorer replaces the store contents with a snapshot.
type Restorer interface {
	Restore(ctx context.Context, snap *ledger.Snapshot) error
}

type Config struct {
	Dir      string
	Interval time.Duration
	Retain   int
}

// Info describes one backup file on disk.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
}

type Coordinator struct {
	src Source
	cfg Config
	now func() time.Time

	mu sync.Mutex
}

func NewCoordinator(src Source, cfg Config) *Coordinator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	if cfg.Retain <= 0 {
		cfg.Retain = DefaultRetain
	}

	return &Coordinator{src: src, cfg: cfg, now: time.Now}
}

// Run backs up immediately and then once per interval until ctx is done.
// A backup that has started when ctx is cancelled still completes.
func (c *Coordinator) Run(ctx context.Context) {
	slog.Info("backup loop started", "dir", c.cfg.Dir, "interval", c.cfg.Interval, "retain", c.cfg.Retain)

	c.runOnce(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("backup loop stopped")
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *Coordinator) runOnce(ctx context.Context) {
	if _, err := c.BackupNow(context.WithoutCancel(ctx)); err != nil {
		slog.Error("backup failed", "error", err)
	}
}

// BackupNow writes one snapshot file and prunes old ones. It returns the
// path of the new file.
func (c *Coordinator) BackupNow(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	path, err := c.backup(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return "", err
	}

	runsTotal.WithLabelValues("ok").Inc()
	lastSuccess.SetToCurrentTime()
	duration.Observe(time.Since(start).Seconds())

	if _, err := c.Prune(); err != nil {
		slog.Warn("pruning old backups", "error", err)
	}

	slog.Info("backup written", "path", path)

	return path, nil
}

func (c *Coordinator) backup(ctx context.Context) (string, error) {
	snap, err := c.src.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("taking snapshot: %w", err)
	}

	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	path, err := c.freePath()
	if err != nil {
		return "", err
	}

	if err := writeFile(path, snap); err != nil {
		return "", err
	}

	return path, nil
}

// freePath picks the file name for now, stepping forward a millisecond at a
// time while that name is already taken. Callers hold c.mu.
func (c *Coordinator) freePath() (string, error) {
	t := c.now()

	for {
		path := filepath.Join(c.cfg.Dir, FileName(t))

		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}

		if err != nil {
			return "", fmt.Errorf("checking backup name: %w", err)
		}

		t = t.Add(time.Millisecond)
	}
}

// FileName is the backup file name for a snapshot taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(timeLayout) + fileSuffix
}

// writeFile writes to a temporary file first so a crash never leaves a
// truncated backup under the final name.
func writeFile(path string, snap *ledger.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".backup-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(strings.TrimSuffix(path, ".gz"))
	zw.ModTime = snap.TakenAt

	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compressing snapshot: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing backup: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing backup: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming backup: %w", err)
	}

	return nil
}

// List returns the backup files in the directory, newest first.
func (c *Coordinator) List() ([]Info, error) {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var out []Info

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		created, ok := parseName(e.Name())
		if !ok {
			continue
		}

		info := Info{Name: e.Name(), Path: filepath.Join(c.cfg.Dir, e.Name()), CreatedAt: created}
		if fi, err := e.Info(); err == nil {
			info.Size = fi.Size()
		}

		out = append(out, info)
	}

	slices.SortFunc(out, func(a, b Info) int { return cmp.Compare(b.Name, a.Name) })

	return out, nil
}

// Prune deletes all but the newest Retain backups and returns how many it
// removed.
func (c *Coordinator) Prune() (int, error) {
	files, err := c.List()
	if err != nil {
		return 0, err
	}

	if len(files) <= c.cfg.Retain {
		return 0, nil
	}

	removed := 0

	var errs []error

	for _, f := range files[c.cfg.Retain:] {
		if err := os.Remove(f.Path); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", f.Name, err))
			continue
		}

		removed++
	}

	return removed, errors.Join(errs...)
}

// Resolve maps a bare backup file name to its path inside the backup dir.
func (c *Coordinator) Resolve(name string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidFile, name)
	}

	if _, ok := parseName(name); !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidFile, name)
	}

	return filepath.Join(c.cfg.Dir, name), nil
}

func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)

	for _, layout := range []string{timeLayout, legacyLayout} {
		if t, err := time.ParseInLocation(layout, stamp, time.Local); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Load reads a backup file back into a snapshot.
func Load(path string) (*ledger.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer zr.Close()

	var snap ledger.Snapshot
	if err := json.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding backup: %w", err)
	}

	return &snap, nil
}

// Restore loads the backup at path and hands it to r.
func Restore(ctx context.Context, r Restorer, path string) (*ledger.Snapshot, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := r.Restore(ctx, snap); err != nil {
		return nil, fmt.Errorf("restoring backup: %w", err)
	}

	slog.Info("backup restored", "path", path, "snapshot", snap.ID, "products", len(snap.Products), "sales", len(snap.Sales))

	return snap, nil
}
