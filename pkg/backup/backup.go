package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/scheduler"
	"SafeYatra/pkg/storage"

	"go.uber.org/zap"
)

const filePrefix = "safeyatra_backup_"

// Config 备份配置
type Config struct {
	Source   string // snapshot file to copy
	Dir      string
	Schedule string // standard cron expression
	Keep     int    // newest copies kept, <= 0 keeps all
}

// Backup copies the durable snapshot into timestamped files and prunes old
// copies. Flush, when set, is called first so the copy is current.
type Backup struct {
	cfg     Config
	flush   func(ctx context.Context) error
	now     func() time.Time
	offsite storage.Store
}

func New(cfg Config, flush func(ctx context.Context) error) *Backup {
	return &Backup{cfg: cfg, flush: flush, now: time.Now}
}

// WithOffsite also uploads every copy to s, pruned to the same Keep.
func (b *Backup) WithOffsite(s storage.Store) *Backup {
	b.offsite = s
	return b
}

// Schedule registers the backup on c under the configured expression.
func (b *Backup) Schedule(c *scheduler.Cron) error {
	_, err := c.Add("backup", b.cfg.Schedule, scheduler.FuncJob(func(ctx context.Context) {
		if dst, err := b.Run(ctx); err != nil {
			logger.Warn("backup failed", zap.Error(err))
		} else {
			logger.Info("backup completed", zap.String("file", dst))
		}
	}))
	return err
}

// Run 执行一次备份并返回备份文件路径
func (b *Backup) Run(ctx context.Context) (string, error) {
	if b.flush != nil {
		if err := b.flush(ctx); err != nil {
			return "", fmt.Errorf("flush before backup: %w", err)
		}
	}
	dst := filepath.Join(b.cfg.Dir, filePrefix+b.now().UTC().Format("20060102_150405.000")+filepath.Ext(b.cfg.Source))
	if err := copyFile(b.cfg.Source, dst); err != nil {
		return "", err
	}
	if err := b.prune(); err != nil {
		logger.Warn("backup prune failed", zap.Error(err))
	}
	if b.offsite != nil {
		if err := b.upload(ctx, dst); err != nil {
			return dst, fmt.Errorf("offsite upload: %w", err)
		}
	}
	return dst, nil
}

func (b *Backup) upload(ctx context.Context, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if err := b.offsite.Write(ctx, filepath.Base(file), f, st.Size()); err != nil {
		return err
	}
	if b.cfg.Keep <= 0 {
		return nil
	}
	keys, err := b.offsite.List(ctx, filePrefix)
	if err != nil {
		return err
	}
	sort.Strings(keys)
	for len(keys) > b.cfg.Keep {
		if err := b.offsite.Delete(ctx, keys[0]); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

// List returns backup files oldest first.
func (b *Backup) List() ([]string, error) {
	entries, err := os.ReadDir(b.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			files = append(files, filepath.Join(b.cfg.Dir, e.Name()))
		}
	}
	// timestamped names sort chronologically
	sort.Strings(files)
	return files, nil
}

func (b *Backup) prune() error {
	if b.cfg.Keep <= 0 {
		return nil
	}
	files, err := b.List()
	if err != nil {
		return err
	}
	for len(files) > b.cfg.Keep {
		if err := os.Remove(files[0]); err != nil {
			return err
		}
		files = files[1:]
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("error copying data: %w", err)
	}
	return out.Close()
}
