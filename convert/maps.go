// Author and branch maps.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	shellquote "github.com/kballard/go-shellquote"
)

// authorMap renames commit authors: "src=dst" per line.
type authorMap struct {
	authors map[string]string
}

func newAuthorMap() *authorMap {
	return &authorMap{authors: make(map[string]string)}
}

func (a *authorMap) lookup(author string) string {
	if dst, ok := a.authors[author]; ok {
		return dst
	}
	return author
}

// read merges an author-mapping file into the map.  Later entries
// override earlier ones, with a notice.
func (a *authorMap) read(ctl *Control, fp io.Reader, name string) error {
	scanner := bufio.NewScanner(fp)
	var currentLineNumber int
	complain := func(msg string, args ...interface{}) {
		ctl.croak("in author map %s, line %d: "+msg,
			append([]interface{}{name, currentLineNumber}, args...)...)
	}
	for scanner.Scan() {
		currentLineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, "=", 2)
		if len(fields) != 2 {
			complain("ignoring bad line %q", line)
			continue
		}
		src := strings.TrimSpace(fields[0])
		dst := strings.TrimSpace(fields[1])
		if prev, ok := a.authors[src]; ok && prev != dst {
			ctl.respond("overriding mapping for author %s, was %s, will be %s", src, prev, dst)
		} else if ctl.logEnable(LogMAPS) {
			ctl.logit("mapping author %s to %s", src, dst)
		}
		a.authors[src] = dst
	}
	return scanner.Err()
}

// readFile is read on a named file; a missing file is an error only if
// mustExist is set.
func (a *authorMap) readFile(ctl *Control, fs billy.Filesystem, path string, mustExist bool) error {
	fp, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil
		}
		return fmt.Errorf("cannot read author map %s: %w", path, err)
	}
	defer fp.Close()
	return a.read(ctl, fp, path)
}

// write dumps the map in sorted order so reruns diff cleanly.
func (a *authorMap) write(fs billy.Filesystem, path string, operator string) error {
	keys := make([]string, 0, len(a.authors))
	for k := range a.authors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	if operator != "" {
		fmt.Fprintf(&b, "# written by %s\n", operator)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, a.authors[k])
	}
	if err := util.WriteFile(fs, path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("in writeAuthorMap: %w", err)
	}
	return nil
}

// readBranchMap parses "source-branch destination-branch" lines.  Names
// with blanks can be shell-quoted; an unquoted line with more than two
// words takes the last word as the destination.
func readBranchMap(fs billy.Filesystem, path string) (map[string]string, error) {
	bmap := make(map[string]string)
	if path == "" {
		return bmap, nil
	}
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("cannot read branch map %s: %w", path, err)
	}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := shellquote.Split(line)
		if err != nil || len(fields) < 2 {
			return nil, configError("syntax error in %s(%d): key/value pair expected", path, i+1)
		}
		if len(fields) > 2 {
			idx := strings.LastIndexAny(line, " \t")
			fields = []string{strings.TrimSpace(line[:idx]), line[idx+1:]}
		}
		bmap[fields[0]] = fields[1]
	}
	return bmap, nil
}

// mapbranch renames a branch.  An empty branch is the source's default
// branch, which the map can rename under the key "default"; "None" is
// accepted for the same purpose for the sake of old branch maps.
func mapbranch(branch string, bmap map[string]string) string {
	key := branch
	if key == "" {
		key = "default"
	}
	if dst, ok := bmap[key]; ok {
		branch = dst
	}
	if branch == "" {
		if dst, ok := bmap["None"]; ok {
			branch = dst
		}
	}
	return branch
}
