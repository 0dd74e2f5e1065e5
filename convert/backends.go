// Backend discovery.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"fmt"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"
)

// SourceFactory opens path as a Source, or returns NoRepoError or
// MissingToolError if the backend does not apply.  revs optionally
// restricts the conversion to the named revisions and their ancestry.
type SourceFactory func(path string, revs []string) (Source, error)

// SinkFactory opens or creates path as a Sink.
type SinkFactory func(path string) (Sink, error)

type sourceBackend struct {
	name    string
	open    SourceFactory
	sorting SortMode
}

type sinkBackend struct {
	name string
	open SinkFactory
}

var (
	backendsMu sync.RWMutex
	sources    []sourceBackend
	sinks      []sinkBackend
)

// RegisterSource makes a source backend available under name.  Probing
// tries backends in registration order.  sorting is the mode used when
// the user does not choose one.  Registering a name twice panics.
func RegisterSource(name string, open SourceFactory, sorting SortMode) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("convert: RegisterSource factory is nil")
	}
	for _, b := range sources {
		if b.name == name {
			panic("convert: RegisterSource called twice for " + name)
		}
	}
	if sorting == "" {
		sorting = BranchSort
	}
	sources = append(sources, sourceBackend{name, open, sorting})
}

// RegisterSink makes a sink backend available under name.
func RegisterSink(name string, open SinkFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("convert: RegisterSink factory is nil")
	}
	for _, b := range sinks {
		if b.name == name {
			panic("convert: RegisterSink called twice for " + name)
		}
	}
	sinks = append(sinks, sinkBackend{name, open})
}

// SourceTypes lists the registered source backends in probe order.
func SourceTypes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, len(sources))
	for i, b := range sources {
		names[i] = b.name
	}
	return names
}

// SinkTypes lists the registered sink backends in probe order.
func SinkTypes() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, len(sinks))
	for i, b := range sinks {
		names[i] = b.name
	}
	return names
}

// OpenSource opens path with the backend named by typ, or with the
// first registered backend that accepts it if typ is empty.  The
// backend's default sort mode is returned along with it.
func OpenSource(ctl *Control, path string, typ string, revs []string) (Source, SortMode, error) {
	backendsMu.RLock()
	candidates := append([]sourceBackend(nil), sources...)
	backendsMu.RUnlock()
	if ctl == nil {
		ctl = quietControl()
	}

	if typ != "" {
		found := false
		for _, b := range candidates {
			if b.name == typ {
				candidates = []sourceBackend{b}
				found = true
				break
			}
		}
		if !found {
			return nil, "", configError("%s: invalid source repository type", typ)
		}
	}
	var failures probeErrors
	for _, b := range candidates {
		source, err := b.open(path, revs)
		if err == nil {
			if ctl.logEnable(LogTOPOLOGY) {
				ctl.logit("%s is a %s repository", path, b.name)
			}
			return source, b.sorting, nil
		}
		if !isProbeFailure(err) {
			return nil, "", fmt.Errorf("%s: %w", b.name, err)
		}
		failures = append(failures, err)
	}
	for _, err := range failures {
		ctl.croak("%v", err)
	}
	return nil, "", &OpenError{Path: path, Failures: failures}
}

// OpenSink opens or creates path with the named sink backend, or the
// first that accepts it.
func OpenSink(ctl *Control, path string, typ string) (Sink, error) {
	backendsMu.RLock()
	candidates := append([]sinkBackend(nil), sinks...)
	backendsMu.RUnlock()
	if ctl == nil {
		ctl = quietControl()
	}

	if typ != "" {
		found := false
		for _, b := range candidates {
			if b.name == typ {
				candidates = []sinkBackend{b}
				found = true
				break
			}
		}
		if !found {
			return nil, configError("%s: invalid destination repository type", typ)
		}
	}
	var failures probeErrors
	for _, b := range candidates {
		sink, err := b.open(path)
		if err == nil {
			return sink, nil
		}
		if !isProbeFailure(err) {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		failures = append(failures, err)
	}
	for _, err := range failures {
		ctl.croak("%v", err)
	}
	return nil, &OpenError{Path: path, Failures: failures}
}

// OpenError is returned when no backend accepted a path.
type OpenError struct {
	Path     string
	Failures []error
}

func (e *OpenError) Error() string {
	msg := fmt.Sprintf("%s: missing or unsupported repository", e.Path)
	if len(e.Failures) > 0 {
		msg += "\n" + strings.TrimRight(probeErrors(e.Failures).String(), "\n")
	}
	return msg
}

// Unwrap exposes the individual probe failures to errors.Is and errors.As.
func (e *OpenError) Unwrap() []error {
	return e.Failures
}

// OpenBackends opens the destination first, so that it can be created
// from scratch, and then the source.  If the source cannot be opened,
// whatever opening the destination created is removed again.
func OpenBackends(ctl *Control, srcPath, srcType string, revs []string,
	destPath, destType string) (Source, Sink, SortMode, error) {
	if ctl == nil {
		ctl = quietControl()
	}
	sink, err := OpenSink(ctl, destPath, destType)
	if err != nil {
		return nil, nil, "", err
	}
	source, sorting, err := OpenSource(ctl, srcPath, srcType, revs)
	if err != nil {
		RemoveArtifacts(ctl, sink)
		return nil, nil, "", err
	}
	return source, sink, sorting, nil
}

// RevMapFormat selects the storage of the revision map.
type RevMapFormat string

// The revision map formats.
const (
	RevMapText   RevMapFormat = "text"
	RevMapSQLite RevMapFormat = "sqlite"
)

// OpenRevMap opens the revision map at path in the given format.
// The text format is read through fs; SQLite needs a real file.
func OpenRevMap(fs billy.Filesystem, path string, format RevMapFormat) (RevMap, error) {
	switch format {
	case "", RevMapText:
		m, err := OpenMapFile(fs, path)
		if err != nil {
			return nil, err
		}
		return m, nil
	case RevMapSQLite:
		m, err := OpenSQLiteRevMap(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, configError("unknown revision map format: %s", format)
}
