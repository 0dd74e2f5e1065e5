// Splice maps: user-supplied parent overrides that stitch histories together.
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

	shlex "github.com/anmitsu/go-shlex"
	billy "github.com/go-git/go-billy/v5"
)

// SpliceMap maps a child revision to the one or two parents it should
// have in the destination, replacing whatever the source says.
type SpliceMap map[string][]string

// splitSpliceLine splits an entry shell-style, with commas counted as
// blanks, so both "child p1 p2" and "child p1, p2" work.  Revision ids
// never contain commas.
func splitSpliceLine(line string) ([]string, error) {
	return shlex.Split(strings.Replace(line, ",", " ", -1), true)
}

// ParseSpliceMap reads splice map entries from r.  name is used in
// messages; check, if not nil, validates each revision token the way
// the source backend expects them to look.
func ParseSpliceMap(r io.Reader, name string, check func(string) error) (SpliceMap, error) {
	m := make(SpliceMap)
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		fields, err := splitSpliceLine(line)
		if err != nil {
			return nil, configError("syntax error in %s(%d): %v", name, lineno, err)
		}
		if len(fields) < 2 || len(fields) > 3 {
			return nil, configError("syntax error in %s(%d): child parent1[,parent2] expected", name, lineno)
		}
		if check != nil {
			for _, part := range fields {
				if err := check(part); err != nil {
					return nil, configError("%s(%d): %v", name, lineno, err)
				}
			}
		}
		child, parents := fields[0], fields[1:]
		if len(parents) == 2 && parents[0] == parents[1] {
			parents = parents[:1]
		}
		m[child] = parents
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("splicemap file not found or error reading %s: %w", name, err)
	}
	return m, nil
}

// readSpliceMap loads the splice map named in the options, if any.
func readSpliceMap(fs billy.Filesystem, path string, source Source) (SpliceMap, error) {
	if path == "" {
		return make(SpliceMap), nil
	}
	fp, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, configError("splicemap file not found or error reading %s", path)
		}
		return nil, fmt.Errorf("splicemap file not found or error reading %s: %w", path, err)
	}
	defer fp.Close()
	return ParseSpliceMap(fp, path, source.CheckRevFormat)
}

// mergeSpliceMap checks that the splice map makes sense for this run and
// rewrites the parent lists it overrides.
func (c *Converter) mergeSpliceMap(parents ParentsGraph, splicemap SpliceMap) error {
	children := make([]string, 0, len(splicemap))
	for child := range splicemap {
		children = append(children, child)
	}
	sort.Strings(children)
	for _, child := range children {
		if _, ok := parents[child]; !ok {
			if !c.dest.HasCommitForSplicemap(lookup(c.revmap, child, child)) {
				// Could be in the source but not converted during this run.
				c.ctl.croak("splice map revision %s is not being converted, ignoring", child)
			}
			continue
		}
		pc := make([]string, 0, len(splicemap[child]))
		for _, p := range splicemap[child] {
			// Nothing to wait for if the parent is already at the destination.
			if c.dest.HasCommitForSplicemap(lookup(c.revmap, p, p)) {
				continue
			}
			if _, ok := parents[p]; !ok {
				return configError("unknown splice map parent: %s", p)
			}
			pc = append(pc, p)
		}
		if c.ctl.logEnable(LogSPLICE) {
			c.ctl.logit("splice: %s now waits for %s instead of %s",
				shortRev(child), revlist(pc), revlist(parents[child]))
		}
		parents[child] = pc
	}
	return nil
}
