package cultural

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// KBEntry is one cultural knowledge-base row (§6): a static fact, idiom, or
// norm keyed by keywords and language/region.
type KBEntry struct {
	ID                  string             `json:"id"`
	Content             string             `json:"content"`
	Keywords            []string           `json:"keywords"`
	Language            records.Language   `json:"language"`
	Region              string             `json:"region"`
	Category            string             `json:"category"`
	Severity            records.FindingSeverity `json:"severity"`
	CulturalSignificance string            `json:"cultural_significance"`
}

// KnowledgeBase is the loaded, query-ready form of the cultural KB file.
type KnowledgeBase struct {
	entries []KBEntry
}

func newEmptyKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{}
}

// retrieve returns KB entries whose keywords appear in query, restricted to
// entries matching language (entries with Language=="" or LanguageMixed
// match any language).
func (kb *KnowledgeBase) retrieve(query string, language records.Language) []KBEntry {
	if kb == nil {
		return nil
	}
	lower := strings.ToLower(query)
	var hits []KBEntry
	for _, e := range kb.entries {
		if e.Language != "" && e.Language != records.LanguageMixed && language != records.LanguageAuto && e.Language != language {
			continue
		}
		for _, kw := range e.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				hits = append(hits, e)
				break
			}
		}
	}
	return hits
}

// KBLoader owns the hot-reloadable knowledge base: the loaded index is
// held behind an atomic.Pointer so concurrent readers never observe a
// partially-loaded KB while a reload is in flight (the teacher's
// "index swap, not index mutation" pattern for its read-heavy caches,
// applied here to a file-backed index instead of an in-memory one).
type KBLoader struct {
	path    string
	current atomic.Pointer[KnowledgeBase]
	logger  *observability.Logger
	watcher *fsnotify.Watcher
}

// NewKBLoader loads cfg.KBPath once synchronously (falling back to an empty
// KB on failure, per §4.4's "never fails outright" clause) and, if
// cfg.KBReloadOnWrite is set and the path is non-empty, starts an fsnotify
// watch that reloads on write and create events.
func NewKBLoader(cfg config.CulturalConfig, logger *observability.Logger) *KBLoader {
	l := &KBLoader{path: cfg.KBPath, logger: logger}
	l.current.Store(newEmptyKnowledgeBase())
	l.reload()

	if cfg.KBReloadOnWrite && cfg.KBPath != "" {
		l.startWatch()
	}
	return l
}

// Current returns the most recently loaded knowledge base. Safe for
// concurrent use with reload.
func (l *KBLoader) Current() *KnowledgeBase {
	return l.current.Load()
}

func (l *KBLoader) reload() {
	kb, err := loadKnowledgeBase(l.path)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn(context.Background(), "cultural KB load failed, falling back to pattern-only detection", map[string]interface{}{"path": l.path, "error": err.Error()})
		}
		return
	}
	l.current.Store(kb)
}

func loadKnowledgeBase(path string) (*KnowledgeBase, error) {
	if path == "" {
		return newEmptyKnowledgeBase(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []KBEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return &KnowledgeBase{entries: entries}, nil
}

func (l *KBLoader) startWatch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn(context.Background(), "cultural KB watch unavailable", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	if err := watcher.Add(l.path); err != nil {
		if l.logger != nil {
			l.logger.Warn(context.Background(), "cultural KB watch add failed", map[string]interface{}{"path": l.path, "error": err.Error()})
		}
		watcher.Close()
		return
	}
	l.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					l.reload()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Close stops the underlying file watch, if one was started.
func (l *KBLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
