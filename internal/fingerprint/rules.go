package fingerprint

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// ruleSet holds path fragments. deny marks library/vendor code; a
// non-empty in_app list flips the project to allow-list mode where only
// matching frames count as application code.
type ruleSet struct {
	InApp []string `yaml:"in_app"`
	Deny  []string `yaml:"deny"`
}

type rulesFile struct {
	Default  ruleSet            `yaml:"default"`
	Projects map[string]ruleSet `yaml:"projects"`
}

// Classifier answers "is this frame application code" for the
// fingerprinter and culprit picker. It starts from the embedded default
// deny list; an optional rules file extends the defaults and adds
// per-project sections, hot-reloaded on file change.
type Classifier struct {
	path string

	mu    sync.RWMutex
	rules rulesFile

	watcher *fsnotify.Watcher
}

func NewClassifier() *Classifier {
	var embedded rulesFile
	if err := yaml.Unmarshal(defaultRulesYAML, &embedded); err != nil {
		panic(fmt.Sprintf("load default_rules.yaml: %v", err))
	}
	return &Classifier{rules: embedded}
}

// LoadFile layers a rules file on top of the embedded defaults. The
// file's default lists extend the embedded ones; project sections are
// taken as-is.
func (c *Classifier) LoadFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	c.path = path
	return c.reload()
}

func (c *Classifier) reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return errs.Wrap(err, "read rules file")
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errs.Wrap(err, "parse rules file")
	}

	var embedded rulesFile
	if err := yaml.Unmarshal(defaultRulesYAML, &embedded); err != nil {
		return errs.Wrap(err, "parse embedded rules")
	}

	merged := rulesFile{
		Default: ruleSet{
			InApp: append(embedded.Default.InApp, file.Default.InApp...),
			Deny:  append(embedded.Default.Deny, file.Default.Deny...),
		},
		Projects: file.Projects,
	}

	c.mu.Lock()
	c.rules = merged
	c.mu.Unlock()
	return nil
}

// Watch reloads the rules file whenever it changes. Watching the parent
// directory catches editors and config tooling that replace the file
// instead of writing it in place.
func (c *Classifier) Watch() error {
	if c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create rules watcher")
	}
	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		_ = watcher.Close()
		return errs.Wrap(err, "watch rules directory")
	}

	c.watcher = watcher
	go c.watchLoop()
	return nil
}

func (c *Classifier) watchLoop() {
	ctx := context.Background()
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := c.reload(); err != nil {
				logging.Warn(ctx, "reload fingerprint rules failed, keeping previous rules",
					slog.String("path", c.path),
					slog.Any("err", errs.Loggable(err)))
				continue
			}
			logging.Info(ctx, "fingerprint rules reloaded", slog.String("path", c.path))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn(ctx, "rules watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}

func (c *Classifier) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

// InApp classifies a frame by its file path: any deny fragment makes it
// vendor code; when the project carries an in_app allow-list, only
// matching paths count as application code. Matching is plain substring.
func (c *Classifier) InApp(projectID string, file string) bool {
	if file == "" {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if containsAny(file, c.rules.Default.Deny) {
		return false
	}

	project, ok := c.rules.Projects[projectID]
	if ok && containsAny(file, project.Deny) {
		return false
	}

	allows := c.rules.Default.InApp
	if ok && len(project.InApp) > 0 {
		allows = project.InApp
	}
	if len(allows) > 0 {
		return containsAny(file, allows)
	}
	return true
}

func containsAny(s string, fragments []string) bool {
	for _, fragment := range fragments {
		if fragment != "" && strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}
