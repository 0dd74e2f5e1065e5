// File maps: select and rename the paths that reach the destination.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
	billy "github.com/go-git/go-billy/v5"
)

// FileMap holds include, exclude and rename rules keyed by path prefix.
// A prefix matches the path itself and everything below it; "." matches
// every path.
type FileMap struct {
	include map[string]bool
	exclude map[string]bool
	rename  map[string]string
}

func newFileMap() *FileMap {
	return &FileMap{
		include: make(map[string]bool),
		exclude: make(map[string]bool),
		rename:  make(map[string]string),
	}
}

func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// ParseFileMap reads include/exclude/rename directives from r.
func ParseFileMap(r io.Reader, name string) (*FileMap, error) {
	fm := newFileMap()
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := shlex.Split(line, true)
		if err != nil {
			return nil, configError("syntax error in %s(%d): %v", name, lineno, err)
		}
		if len(fields) == 0 {
			continue
		}
		argc := map[string]int{"include": 2, "exclude": 2, "rename": 3}
		want, ok := argc[fields[0]]
		if !ok {
			return nil, configError("%s(%d): unknown directive %s", name, lineno, fields[0])
		}
		if len(fields) != want {
			return nil, configError("%s(%d): %s takes %d arguments", name, lineno, fields[0], want-1)
		}
		switch fields[0] {
		case "include":
			fm.include[normalizePath(fields[1])] = true
		case "exclude":
			fm.exclude[normalizePath(fields[1])] = true
		case "rename":
			fm.rename[normalizePath(fields[1])] = normalizePath(fields[2])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("while reading file map %s: %w", name, err)
	}
	return fm, nil
}

func readFileMap(fs billy.Filesystem, path string) (*FileMap, error) {
	fp, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file map %s: %w", path, err)
	}
	defer fp.Close()
	return ParseFileMap(fp, path)
}

// prefixes yields path and each of its ancestors, longest first, then ".".
func prefixes(path string) []string {
	out := []string{path}
	for {
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			break
		}
		path = path[:i]
		out = append(out, path)
	}
	return append(out, ".")
}

// longest returns the length rank of the longest prefix of path in
// rules, or -1.  Lower ranks are longer prefixes.
func longest(path string, rules map[string]bool) int {
	for i, p := range prefixes(path) {
		if rules[p] {
			return i
		}
	}
	return -1
}

// Map returns the destination path for path, or "" if it is dropped.
func (fm *FileMap) Map(path string) string {
	path = normalizePath(path)
	inc := 0
	if len(fm.include) > 0 {
		inc = longest(path, fm.include)
		if inc < 0 {
			return ""
		}
	}
	if exc := longest(path, fm.exclude); exc >= 0 && (len(fm.include) == 0 || exc <= inc) {
		return ""
	}
	for _, p := range prefixes(path) {
		dst, ok := fm.rename[p]
		if !ok {
			continue
		}
		switch {
		case p == "." && dst == ".":
			return path
		case p == ".":
			return dst + "/" + path
		case dst == "." && p == path:
			// A single file moved to the top level keeps its name.
			return path[strings.LastIndexByte(path, '/')+1:]
		case dst == ".":
			return strings.TrimPrefix(strings.TrimPrefix(path, p), "/")
		default:
			return dst + path[len(p):]
		}
	}
	return path
}

// filemapSource presents a Source as if only the mapped paths existed.
type filemapSource struct {
	Source
	fm *FileMap
	// destination path back to source path, for GetFile
	origin map[string]string
}

func newFilemapSource(source Source, fm *FileMap) *filemapSource {
	return &filemapSource{Source: source, fm: fm, origin: make(map[string]string)}
}

func (s *filemapSource) GetChanges(rev string, full bool) (*Changes, error) {
	changes, err := s.Source.GetChanges(rev, full)
	if err != nil || changes.Alias != "" {
		return changes, err
	}
	out := &Changes{Copies: make(map[string]string), CleanP2: make(map[string]bool)}
	for _, f := range changes.Files {
		dst := s.fm.Map(f.Path)
		if dst == "" {
			continue
		}
		s.origin[dst] = f.Path
		out.Files = append(out.Files, FileChange{Path: dst, Rev: f.Rev})
		if changes.CleanP2[f.Path] {
			out.CleanP2[dst] = true
		}
	}
	for dst, src := range changes.Copies {
		newdst, newsrc := s.fm.Map(dst), s.fm.Map(src)
		if newdst == "" || newsrc == "" {
			continue
		}
		out.Copies[newdst] = newsrc
	}
	return out, nil
}

func (s *filemapSource) GetFile(path string, rev string) ([]byte, string, error) {
	if orig, ok := s.origin[path]; ok {
		path = orig
	}
	return s.Source.GetFile(path, rev)
}
