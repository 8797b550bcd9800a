package file

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"prepaid-meter/internal/observability/metrics"
	tariff "prepaid-meter/internal/tariff/domain"
)

// TableReplacer receives reloaded tariff tables.
type TableReplacer interface {
	ReplaceTariffTable(ctx context.Context, table tariff.Table) error
}

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a tariff file when it changes on disk.
type Watcher struct {
	path     string
	target   TableReplacer
	logger   *log.Logger
	debounce time.Duration

	fsw  *fsnotify.Watcher
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher constructs a watcher for path.
func NewWatcher(path string, target TableReplacer, logger *log.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("tariff watcher: empty path")
	}
	if target == nil {
		return nil, errors.New("tariff watcher: nil target")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		target:   target,
		logger:   logger,
		debounce: defaultDebounce,
		stop:     make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file by rename are picked up.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop signals the watcher to exit and waits for it.
func (w *Watcher) Stop() {
	if w.fsw == nil {
		return
	}
	close(w.stop)
	w.wg.Wait()
}

// Reload loads the file and hands the table to the target.
func (w *Watcher) Reload(ctx context.Context) error {
	table, err := Load(w.path)
	if err == nil {
		err = w.target.ReplaceTariffTable(ctx, table)
	}
	if err != nil {
		metrics.IncTariffReload(metrics.ResultError)
		w.logger.Printf("tariff watcher: reload %s error: %v", w.path, err)
		return err
	}
	metrics.IncTariffReload(metrics.ResultSuccess)
	w.logger.Printf("tariff watcher: reloaded %s (%d plans)", w.path, len(table))
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer w.fsw.Close()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			_ = w.Reload(context.Background())
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("tariff watcher: %v", err)
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
