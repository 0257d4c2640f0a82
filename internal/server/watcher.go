package server

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

// pollInterval controls how often an emitted ChangeSet is retried when the
// build loop still holds the previously queued set.
const pollInterval = 250 * time.Millisecond

// ChangeSet aggregates the filesystem changes seen in one debounce window.
// Exactly one of the rebuild strategies applies: a config reload supersedes
// a full build, which supersedes per-source rebuilds.
type ChangeSet struct {
	Config  bool
	Full    bool
	Static  bool
	Sources []string
}

func (c ChangeSet) empty() bool {
	return !c.Config && !c.Full && !c.Static && len(c.Sources) == 0
}

type changeKind int

const (
	changeIgnored changeKind = iota
	changeConfig
	changeTemplate
	changeSource
	changeStatic
)

// pendingChanges accumulates classified events until the quiet window
// elapses. Source paths are deduplicated so editors that write a file
// several times per save trigger one reprocess.
type pendingChanges struct {
	config  bool
	full    bool
	static  bool
	sources map[string]struct{}
}

func (p *pendingChanges) add(kind changeKind, path string) {
	switch kind {
	case changeConfig:
		p.config = true
	case changeTemplate:
		p.full = true
	case changeStatic:
		p.static = true
	case changeSource:
		if p.sources == nil {
			p.sources = map[string]struct{}{}
		}
		p.sources[path] = struct{}{}
	}
}

func (p *pendingChanges) empty() bool {
	return !p.config && !p.full && !p.static && len(p.sources) == 0
}

func (p *pendingChanges) toSet() ChangeSet {
	set := ChangeSet{Config: p.config, Full: p.full, Static: p.static}
	if len(p.sources) > 0 {
		set.Sources = make([]string, 0, len(p.sources))
		for path := range p.sources {
			set.Sources = append(set.Sources, path)
		}
		sort.Strings(set.Sources)
	}
	return set
}

// Watcher observes the source, template, static, and config paths and emits
// debounced ChangeSets on its output channel. Bursts of events within the
// quiet window coalesce into one set; the max delay bounds how long a busy
// editor can postpone the emit.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	out    chan<- ChangeSet

	quiet    time.Duration
	maxDelay time.Duration

	configPath   string
	sourceDir    string
	templatesDir string
	staticDir    string
}

// NewWatcher registers the config's watched paths. Directories that do not
// exist yet are skipped; fsnotify picks them up if a parent event recreates
// them inside a watched tree.
func NewWatcher(cfg *config.Config, configPath string, out chan<- ChangeSet, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "create filesystem watcher")
	}

	w := &Watcher{
		fsw:      fsw,
		logger:   logger,
		out:      out,
		quiet:    cfg.Dev.QuietWindowDuration(),
		maxDelay: cfg.Dev.MaxDelayDuration(),
	}

	w.sourceDir = absOrSame(cfg.Paths.Source)
	w.templatesDir = absOrSame(cfg.Paths.Templates)
	w.staticDir = absOrSame(cfg.Paths.Static)
	if configPath != "" {
		w.configPath = absOrSame(configPath)
	}

	for _, dir := range []string{w.sourceDir, w.templatesDir, w.staticDir} {
		if err := w.addRecursive(dir); err != nil {
			_ = fsw.Close()
			return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "watch "+dir)
		}
	}
	if w.configPath != "" {
		// Watch the directory so atomic save-and-rename writes are seen.
		if err := fsw.Add(filepath.Dir(w.configPath)); err != nil {
			_ = fsw.Close()
			return nil, errors.Wrap(err, errors.CategoryFileSystem, errors.SeverityFatal, "watch config directory")
		}
	}

	return w, nil
}

func absOrSame(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (w *Watcher) addRecursive(root string) error {
	if root == "" {
		return nil
	}
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		w.logger.Debug("watch path missing, skipping", slog.String("path", root))
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// classify maps an event path onto a rebuild strategy. Paths outside the
// watched trees, wrong extensions, and editor droppings come back ignored.
func (w *Watcher) classify(path string) changeKind {
	abs := absOrSame(path)
	if w.configPath != "" && abs == w.configPath {
		return changeConfig
	}
	if within(w.templatesDir, abs) {
		if strings.EqualFold(filepath.Ext(abs), ".html") {
			return changeTemplate
		}
		return changeIgnored
	}
	if within(w.sourceDir, abs) {
		ext := strings.ToLower(filepath.Ext(abs))
		if ext == ".md" || ext == ".markdown" {
			return changeSource
		}
		return changeIgnored
	}
	if within(w.staticDir, abs) {
		if strings.HasPrefix(filepath.Base(abs), ".") {
			return changeIgnored
		}
		return changeStatic
	}
	return changeIgnored
}

func within(dir, path string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Run drives the debounce loop until the context ends. Emits block only on
// the cap of the output channel: when the build loop is busy and one set is
// already queued, further changes keep merging into the pending set and the
// handoff is retried on a short poll.
func (w *Watcher) Run(ctx context.Context) error {
	newStoppedTimer := func() *time.Timer {
		t := time.NewTimer(time.Hour)
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
	)

	resetTimer := func(t *time.Timer, after time.Duration) {
		if !t.Stop() {
			select {
			case <-t.C:
			default:
			}
		}
		t.Reset(after)
	}

	pending := &pendingChanges{}
	burstActive := false

	emit := func() {
		if pending.empty() {
			quietC, maxC = nil, nil
			burstActive = false
			return
		}
		select {
		case w.out <- pending.toSet():
			pending = &pendingChanges{}
			quietC, maxC = nil, nil
			burstActive = false
		default:
			// Build loop busy with a queued set; retry shortly.
			resetTimer(quietTimer, pollInterval)
			quietC = quietTimer.C
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ev.Name); err != nil {
						w.logger.Warn("watch new directory failed",
							slog.String("path", ev.Name), slog.Any("error", err))
					}
					continue
				}
			}
			kind := w.classify(ev.Name)
			if kind == changeIgnored {
				continue
			}
			w.logger.Debug("change detected",
				slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			pending.add(kind, absOrSame(ev.Name))
			resetTimer(quietTimer, w.quiet)
			quietC = quietTimer.C
			if !burstActive {
				burstActive = true
				resetTimer(maxTimer, w.maxDelay)
				maxC = maxTimer.C
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", slog.Any("error", err))

		case <-quietC:
			emit()

		case <-maxC:
			maxC = nil
			emit()
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
