// Package symbolicate rewrites raw stack frames into original source
// locations using uploaded source maps, with name demangling for
// platforms that need only that. Every failure path degrades to "frame
// stays raw": nothing in here may fail a capture.
package symbolicate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/domain/crash"
	"faultline/internal/errs"
	"faultline/internal/metrics"
	"faultline/internal/ports"
)

const (
	defaultArtifactTimeout = 2 * time.Second
	defaultMaxMapBytes     = 16 << 20
	defaultContextLines    = 5
)

type Options struct {
	// ArtifactTimeout bounds each artifact fetch from the store.
	ArtifactTimeout time.Duration
	// MaxMapBytes rejects oversized maps before JSON parsing.
	MaxMapBytes int64
	// ContextLines is how many source lines surround the context line.
	ContextLines int
}

// Engine resolves frames against the artifact store. Stateless across
// requests; per-request parse results live in a Session.
type Engine struct {
	artifacts ports.ArtifactRepository
	memo      ports.Cache
	opts      Options
}

func NewEngine(artifacts ports.ArtifactRepository, memo ports.Cache, opts Options) *Engine {
	if opts.ArtifactTimeout <= 0 {
		opts.ArtifactTimeout = defaultArtifactTimeout
	}
	if opts.MaxMapBytes <= 0 {
		opts.MaxMapBytes = defaultMaxMapBytes
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = defaultContextLines
	}
	return &Engine{artifacts: artifacts, memo: memo, opts: opts}
}

// sessionEntry is a resolved (release, file) pair. parsed == nil means
// the artifact is absent or its map would not parse; frames stay raw.
type sessionEntry struct {
	artifactID uint64
	parsed     *ParsedSourceMap
}

// Session caches parsed maps for the lifetime of one capture or batch so
// frames and sibling events sharing an artifact parse it once. Safe for
// concurrent use; sessions are cheap and never shared across requests.
type Session struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	logged  map[uint64]struct{}
}

func NewSession() *Session {
	return &Session{
		entries: make(map[string]sessionEntry),
		logged:  make(map[uint64]struct{}),
	}
}

func (s *Session) entry(key string) (sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *Session) store(key string, entry sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

// markLogged reports whether this artifact's parse failure still needs
// logging in this session.
func (s *Session) markLogged(artifactID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logged[artifactID]; ok {
		return false
	}
	s.logged[artifactID] = struct{}{}
	return true
}

// Symbolicate dispatches on the closed platform set and returns a
// rewritten copy of the trace. The input is never mutated; the caller
// keeps it as the raw sidecar.
func (e *Engine) Symbolicate(ctx context.Context, session *Session, projectID string, release string, platform crash.Platform, trace crash.Stacktrace) crash.Stacktrace {
	if trace.IsEmpty() {
		return trace
	}
	if session == nil {
		session = NewSession()
	}

	out := trace.Clone()
	switch {
	case platform.UsesSourceMaps():
		for i := range out.Frames {
			if e.resolveFrame(ctx, session, projectID, release, &out.Frames[i]) {
				metrics.FramesSymbolicated.WithLabelValues(metrics.FrameResolved).Inc()
			} else {
				metrics.FramesSymbolicated.WithLabelValues(metrics.FrameRaw).Inc()
			}
		}
	case platform.UsesDemangling():
		for i := range out.Frames {
			frame := &out.Frames[i]
			demangled := DemangleRust(frame.Function)
			if demangled != frame.Function {
				frame.Function = demangled
				metrics.FramesSymbolicated.WithLabelValues(metrics.FrameResolved).Inc()
			} else {
				metrics.FramesSymbolicated.WithLabelValues(metrics.FrameRaw).Inc()
			}
		}
	default:
		// Remaining platforms report source-true traces already.
	}
	return out
}

// resolveFrame rewrites one frame in place on a lookup hit.
func (e *Engine) resolveFrame(ctx context.Context, session *Session, projectID string, release string, frame *crash.Frame) bool {
	if frame.File == "" || frame.Line <= 0 || frame.Col <= 0 || release == "" {
		return false
	}

	entry, ok := e.mapFor(ctx, session, projectID, release, frame.File)
	if !ok {
		return false
	}

	loc, ok := entry.parsed.Lookup(frame.Line-1, frame.Col-1)
	if !ok {
		return false
	}

	frame.File = loc.Source
	frame.Line = loc.Line + 1
	frame.Col = loc.Col + 1
	if loc.Name != "" {
		frame.Function = loc.Name
	}
	if pre, contextLine, post, ok := entry.parsed.Context(loc.SourceIndex, loc.Line, e.opts.ContextLines); ok {
		frame.PreContext = pre
		frame.ContextLine = contextLine
		frame.PostContext = post
	}

	e.touch(ctx, entry.artifactID)
	return true
}

// mapFor resolves (project, release, file) to a parsed map, consulting
// the session cache first. Negative outcomes are cached too, so a batch
// of a thousand frames probes a missing artifact once.
func (e *Engine) mapFor(ctx context.Context, session *Session, projectID string, release string, file string) (sessionEntry, bool) {
	key := projectID + "\x00" + release + "\x00" + file
	if entry, ok := session.entry(key); ok {
		return entry, entry.parsed != nil
	}

	artifact, err := e.fetchArtifact(ctx, projectID, release, file)
	if err != nil {
		if !errors.Is(err, ports.ErrArtifactNotFound) {
			logging.Warn(ctx, "artifact lookup failed, frame stays raw",
				slog.String("file", file),
				slog.String("release", release),
				slog.Any("err", errs.Loggable(err)))
		}
		session.store(key, sessionEntry{})
		return sessionEntry{}, false
	}

	parsed, err := ParseSourceMap(artifact.Content, e.opts.MaxMapBytes)
	if err != nil {
		e.reportMapFailure(ctx, session, artifact.ArtifactID, err)
		entry := sessionEntry{artifactID: artifact.ArtifactID}
		session.store(key, entry)
		return entry, false
	}

	entry := sessionEntry{artifactID: artifact.ArtifactID, parsed: parsed}
	session.store(key, entry)
	return entry, true
}

// fetchArtifact tries the conventional "<file>.map" name first, then the
// file itself. Each attempt runs under the artifact timeout.
func (e *Engine) fetchArtifact(ctx context.Context, projectID string, release string, file string) (ports.Artifact, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.ArtifactTimeout)
	defer cancel()

	artifact, err := e.artifacts.GetByName(fetchCtx, projectID, release, file+".map")
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, ports.ErrArtifactNotFound) {
		return ports.Artifact{}, err
	}
	return e.artifacts.GetByName(fetchCtx, projectID, release, file)
}

// reportMapFailure logs a corrupt map once per artifact: a session-local
// set stops storms within one batch, a persistent memo stops repeats
// across captures.
func (e *Engine) reportMapFailure(ctx context.Context, session *Session, artifactID uint64, cause error) {
	metrics.MapParseFailures.Inc()
	if !session.markLogged(artifactID) {
		return
	}

	memoKey := mapFailKey(artifactID)
	if e.memo != nil {
		if _, found, err := e.memo.Get(ctx, memoKey); err == nil && found {
			return
		}
	}

	parseErr := &MapParseError{ArtifactID: artifactID, Err: cause}
	logging.Warn(ctx, "source map unusable, frames stay raw",
		slog.Uint64("artifact_id", artifactID),
		slog.Any("err", errs.Loggable(parseErr)))
	if e.memo != nil {
		_ = e.memo.Set(ctx, memoKey, cause.Error(), 0)
	}
}

func mapFailKey(artifactID uint64) string {
	return fmt.Sprintf("mapfail:%d", artifactID)
}

// touch records the symbolication hit for retention. Best effort.
func (e *Engine) touch(ctx context.Context, artifactID uint64) {
	at := time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")
	if err := e.artifacts.Touch(ctx, artifactID, at); err != nil {
		logging.Warn(ctx, "touch artifact failed",
			slog.Uint64("artifact_id", artifactID),
			slog.Any("err", errs.Loggable(err)))
	}
}
