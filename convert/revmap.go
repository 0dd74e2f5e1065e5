// The revision map: which source revision became which destination revision.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// RevMap is the durable state of a conversion.  Keys are source
// revisions, values destination revisions or SkipRev.  An entry, once
// written, survives every later run; it is only ever re-pointed, never
// removed.
type RevMap interface {
	// Get returns the mapping for key.
	Get(key string) (string, bool)
	// Set records a mapping durably before returning.
	Set(key string, value string) error
	// Keys lists the keys in the order they were first written.
	Keys() []string
	// Close flushes and releases the backing store.
	Close() error
}

// lookup is RevMap.Get with a fallback, the dict.get(key, default) idiom.
func lookup(m RevMap, key string, dflt string) string {
	if v, ok := m.Get(key); ok {
		return v
	}
	return dflt
}

// MapFile is a RevMap kept in a text file, one "key value" pair per
// line.  Updates are appended, so a key may appear several times and
// the last line wins when the file is read back.  Keys may contain
// spaces; the value is whatever follows the last one.
type MapFile struct {
	fs    billy.Filesystem
	path  string
	fp    billy.File
	dict  map[string]string
	order []string
}

// Ensure MapFile implements RevMap
var _ RevMap = (*MapFile)(nil)

// OpenMapFile reads path if it exists.  An empty path gives a map that
// lives in memory only.
func OpenMapFile(fs billy.Filesystem, path string) (*MapFile, error) {
	m := &MapFile{fs: fs, path: path, dict: make(map[string]string)}
	if err := m.read(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MapFile) read() error {
	if m.path == "" {
		return nil
	}
	fp, err := m.fs.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open map file %q: %w", m.path, err)
	}
	defer fp.Close()
	scanner := bufio.NewScanner(fp)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx <= 0 {
			return configError("syntax error in %s(%d): key/value pair expected", m.path, lineno)
		}
		m.remember(line[:idx], line[idx+1:])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("while reading map file %q: %w", m.path, err)
	}
	return nil
}

func (m *MapFile) remember(key string, value string) {
	if _, ok := m.dict[key]; !ok {
		m.order = append(m.order, key)
	}
	m.dict[key] = value
}

// Get returns the mapping for key.
func (m *MapFile) Get(key string) (string, bool) {
	v, ok := m.dict[key]
	return v, ok
}

// Set appends the mapping to the file and syncs it.
func (m *MapFile) Set(key string, value string) error {
	if m.path != "" {
		if m.fp == nil {
			fp, err := m.fs.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("could not open map file %q: %w", m.path, err)
			}
			m.fp = fp
		}
		if _, err := fmt.Fprintf(m.fp, "%s %s\n", key, value); err != nil {
			return fmt.Errorf("while writing map file %q: %w", m.path, err)
		}
		if s, ok := m.fp.(interface{ Sync() error }); ok {
			if err := s.Sync(); err != nil {
				return fmt.Errorf("while syncing map file %q: %w", m.path, err)
			}
		}
	}
	m.remember(key, value)
	return nil
}

// Keys lists the keys in first-written order.
func (m *MapFile) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len is the number of distinct keys.
func (m *MapFile) Len() int {
	return len(m.order)
}

// Close releases the append handle.
func (m *MapFile) Close() error {
	if m.fp != nil {
		err := m.fp.Close()
		m.fp = nil
		return err
	}
	return nil
}
