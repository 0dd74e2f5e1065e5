// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

// testCommits makes commits with the given dates, sort keys in key order.
func testCommits(dates map[string]string) map[string]*Commit {
	commits := make(map[string]*Commit)
	i := 0
	for _, rev := range ParentsGraph(mapOfKeys(dates)).sortedKeys() {
		c := NewCommit("", dates[rev], rev, nil)
		c.Rev = rev
		c.SortKey = int64(i)
		commits[rev] = c
		i++
	}
	return commits
}

func mapOfKeys(m map[string]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k := range m {
		out[k] = nil
	}
	return out
}

func diamond() ParentsGraph {
	return ParentsGraph{
		"a": {},
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}
}

func sortWith(t *testing.T, mode SortMode, parents ParentsGraph, commits map[string]*Commit) []string {
	t.Helper()
	picker, err := newSorter(mode, parents, commits)
	assertNoError(t, err)
	out, err := toposort(parents, picker)
	assertNoError(t, err)
	return out
}

func TestToposortLinear(t *testing.T) {
	parents := ParentsGraph{"a": {}, "b": {"a"}, "c": {"b"}}
	commits := testCommits(map[string]string{"a": "3 0", "b": "2 0", "c": "1 0"})
	for _, mode := range SortModes {
		// Dates running backwards must not beat ancestry.
		assertListEqual(t, sortWith(t, mode, parents, commits), []string{"a", "b", "c"})
	}
}

func TestToposortBranchsortFollowsPrevious(t *testing.T) {
	commits := testCommits(map[string]string{"a": "0 0", "b": "0 0", "c": "0 0", "d": "0 0"})
	// c was unblocked last, so it is at the front and is a child of a.
	assertListEqual(t, sortWith(t, BranchSort, diamond(), commits), []string{"a", "c", "b", "d"})
}

func TestToposortSplicedDiamond(t *testing.T) {
	revmap, err := OpenMapFile(nil, "")
	assertNoError(t, err)
	c := &Converter{ctl: quietControl(), dest: NewMemorySink(), revmap: revmap}
	parents := diamond()
	assertNoError(t, c.mergeSpliceMap(parents, SpliceMap{"d": {"a"}}))
	assertListEqual(t, parents["d"], []string{"a"})

	// d no longer waits for b and c, so it follows its new parent.
	commits := testCommits(map[string]string{"a": "0 0", "b": "0 0", "c": "0 0", "d": "0 0"})
	assertListEqual(t, sortWith(t, BranchSort, parents, commits), []string{"a", "d", "c", "b"})
}

func TestToposortBranchsortPrefersChild(t *testing.T) {
	// After x, y is the only child of x; z is an unrelated root.
	parents := ParentsGraph{"x": {}, "y": {"x"}, "z": {}}
	commits := testCommits(map[string]string{"x": "0 0", "y": "0 0", "z": "0 0"})
	assertListEqual(t, sortWith(t, BranchSort, parents, commits), []string{"x", "y", "z"})
}

func TestToposortDatesort(t *testing.T) {
	commits := testCommits(map[string]string{
		"a": "1000 0",
		"b": "2000 0",
		"c": "3000 0",
		"d": "4000 0",
	})
	assertListEqual(t, sortWith(t, DateSort, diamond(), commits), []string{"a", "b", "c", "d"})

	// Equal dates fall back to worklist order.
	same := testCommits(map[string]string{"a": "5 0", "b": "5 0", "c": "5 0", "d": "5 0"})
	assertListEqual(t, sortWith(t, DateSort, diamond(), same), []string{"a", "c", "b", "d"})
}

func TestToposortDatesortMixedFormats(t *testing.T) {
	parents := ParentsGraph{"x": {}, "y": {}, "z": {}}
	commits := testCommits(map[string]string{
		"x": "2011-03-13T07:06:42Z",
		"y": "1300000000 0",
		"z": "1300000001 +0000",
	})
	assertListEqual(t, sortWith(t, DateSort, parents, commits), []string{"y", "z", "x"})
}

func TestToposortSourcesort(t *testing.T) {
	commits := testCommits(map[string]string{"a": "0 0", "b": "0 0", "c": "0 0", "d": "0 0"})
	assertListEqual(t, sortWith(t, SourceSort, diamond(), commits), []string{"a", "b", "c", "d"})
}

func TestToposortClosesort(t *testing.T) {
	parents := ParentsGraph{"x": {}, "y": {}, "z": {"x"}}
	commits := testCommits(map[string]string{"x": "0 0", "y": "0 0", "z": "0 0"})
	commits["x"].Extra["close"] = "1"
	assertListEqual(t, sortWith(t, SourceSort, parents, commits), []string{"x", "y", "z"})
	assertListEqual(t, sortWith(t, CloseSort, parents, commits), []string{"y", "x", "z"})
}

func TestToposortCycle(t *testing.T) {
	parents := ParentsGraph{"r": {}, "a": {"r", "b"}, "b": {"a"}}
	commits := testCommits(map[string]string{"r": "0 0", "a": "0 0", "b": "0 0"})
	for _, mode := range SortModes {
		picker, err := newSorter(mode, parents, commits)
		assertNoError(t, err)
		_, err = toposort(parents, picker)
		var cycle *CycleError
		if !errors.As(err, &cycle) {
			t.Fatalf("%s: expected a CycleError, got %v", mode, err)
		}
		assertListEqual(t, cycle.Unsorted, []string{"a", "b"})
		assertErrorContains(t, err, "not all revisions were sorted")
	}
}

func TestToposortEmpty(t *testing.T) {
	out, err := toposort(ParentsGraph{}, &branchSorter{})
	assertNoError(t, err)
	assertIntEqual(t, len(out), 0)
}

func TestUnknownSortMode(t *testing.T) {
	_, err := newSorter("randomsort", diamond(), nil)
	var cerr *ConfigError
	assertTrue(t, errors.As(err, &cerr))
	_, err = ParseSortMode("randomsort")
	assertErrorContains(t, err, "unknown sort mode: randomsort")
	mode, err := ParseSortMode("datesort")
	assertNoError(t, err)
	assertEqual(t, mode.String(), "datesort")
}

// Every ordering must be a permutation of the graph with each revision
// after all of its parents, whatever the policy.
func TestToposortRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		n := 5 + rng.Intn(40)
		parents := make(ParentsGraph)
		dates := make(map[string]string)
		revs := make([]string, n)
		for i := 0; i < n; i++ {
			rev := fmt.Sprintf("r%03d", i)
			revs[i] = rev
			var ps []string
			if i > 0 {
				for k := rng.Intn(3); k > 0; k-- {
					p := revs[rng.Intn(i)]
					dup := false
					for _, q := range ps {
						dup = dup || q == p
					}
					if !dup {
						ps = append(ps, p)
					}
				}
			}
			parents[rev] = ps
			dates[rev] = fmt.Sprintf("%d 0", rng.Intn(1000))
		}
		commits := testCommits(dates)
		for rev := range commits {
			if rng.Intn(4) == 0 {
				commits[rev].Extra["close"] = "1"
			}
		}
		for _, mode := range SortModes {
			out := sortWith(t, mode, parents, commits)
			assertIntEqual(t, len(out), n)
			pos := make(map[string]int, n)
			for i, rev := range out {
				if _, ok := pos[rev]; ok {
					t.Fatalf("%s: %s emitted twice", mode, rev)
				}
				pos[rev] = i
			}
			for child, ps := range parents {
				for _, p := range ps {
					if pos[p] >= pos[child] {
						t.Errorf("%s: parent %s not before child %s", mode, p, child)
					}
				}
			}
		}
	}
}
