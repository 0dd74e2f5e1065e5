// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// worklist holds the revisions whose parents have all been scheduled.
// Newly unblocked revisions go to the front, so that without any other
// preference the scheduler keeps following the line of history it just
// opened up.
type worklist struct {
	list *doublylinkedlist.List
}

func newWorklist(revs []string) *worklist {
	w := &worklist{list: doublylinkedlist.New()}
	for _, r := range revs {
		w.list.Add(r)
	}
	return w
}

func (w *worklist) pushFront(rev string) {
	w.list.Prepend(rev)
}

func (w *worklist) empty() bool {
	return w.list.Empty()
}

func (w *worklist) head() string {
	v, _ := w.list.Get(0)
	return v.(string)
}

// each calls hook on the revisions front to back until it returns false.
func (w *worklist) each(hook func(rev string) bool) {
	it := w.list.Iterator()
	for it.Next() {
		if !hook(it.Value().(string)) {
			return
		}
	}
}

// remove takes rev out of the list; it must be present.
func (w *worklist) remove(rev string) {
	it := w.list.Iterator()
	for it.Next() {
		if it.Value().(string) == rev {
			w.list.Remove(it.Index())
			return
		}
	}
}

// minimum is the first revision for which no other compares less.
func (w *worklist) minimum(less func(a, b string) bool) string {
	best := ""
	first := true
	w.each(func(rev string) bool {
		if first || less(rev, best) {
			best = rev
			first = false
		}
		return true
	})
	return best
}

// A sorter chooses the next revision to convert among those eligible.
// Sorters may remember earlier choices, so one is built per run.
type sorter interface {
	pick(eligible *worklist) string
}

// branchSorter picks a child of the previously converted revision if
// one is eligible, and the head of the worklist otherwise.  Staying on
// one line of history keeps branch switching at the destination rare,
// which some destination formats compress much better.
type branchSorter struct {
	parents ParentsGraph
	prev    string
	started bool
}

func (s *branchSorter) pick(eligible *worklist) string {
	next := eligible.head()
	if s.started {
		eligible.each(func(rev string) bool {
			for _, p := range s.parents[rev] {
				if p == s.prev {
					next = rev
					return false
				}
			}
			return true
		})
	}
	s.prev = next
	s.started = true
	return next
}

// dateSorter picks the oldest eligible revision.
type dateSorter struct {
	commits map[string]*Commit
	dates   map[string]Date
}

func (s *dateSorter) date(rev string) Date {
	if d, ok := s.dates[rev]; ok {
		return d
	}
	d, err := parseDate(s.commits[rev].Date)
	if err != nil {
		// Undatable revisions sort as if at the epoch.
		d = Date{timestamp: time.Unix(0, 0).UTC()}
	}
	s.dates[rev] = d
	return d
}

func (s *dateSorter) pick(eligible *worklist) string {
	return eligible.minimum(func(a, b string) bool {
		return s.date(a).Before(s.date(b))
	})
}

// sourceSorter follows the source's native order.
type sourceSorter struct {
	commits map[string]*Commit
}

func (s *sourceSorter) pick(eligible *worklist) string {
	return eligible.minimum(func(a, b string) bool {
		return s.commits[a].SortKey < s.commits[b].SortKey
	})
}

// closeSorter is the native order with branch-closing revisions held
// back until nothing else is eligible.
type closeSorter struct {
	commits map[string]*Commit
}

func (s *closeSorter) pick(eligible *worklist) string {
	return eligible.minimum(func(a, b string) bool {
		ca, cb := s.commits[a], s.commits[b]
		if ca.isClosed() != cb.isClosed() {
			return !ca.isClosed()
		}
		return ca.SortKey < cb.SortKey
	})
}

// newSorter builds the policy object for mode.
func newSorter(mode SortMode, parents ParentsGraph, commits map[string]*Commit) (sorter, error) {
	switch mode {
	case BranchSort:
		return &branchSorter{parents: parents}, nil
	case DateSort:
		return &dateSorter{commits: commits, dates: make(map[string]Date)}, nil
	case SourceSort:
		return &sourceSorter{commits: commits}, nil
	case CloseSort:
		return &closeSorter{commits: commits}, nil
	}
	return nil, configError("unknown sort mode: %s", mode)
}

// mapchildren inverts the graph.  Revisions are visited in sorted
// order so the roots, and everything that follows from them, come out
// the same on every run.
func mapchildren(parents ParentsGraph) (map[string][]string, []string) {
	children := make(map[string][]string, len(parents))
	var roots []string
	for _, n := range parents.sortedKeys() {
		if _, ok := children[n]; !ok {
			children[n] = nil
		}
		for _, p := range parents[n] {
			children[p] = append(children[p], n)
		}
		if len(parents[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return children, roots
}

// toposort returns an ordering such that every revision in the graph is
// preceded by all its parents in the graph.  Parents outside the graph
// are already converted and impose no constraint.
func toposort(parents ParentsGraph, picker sorter) ([]string, error) {
	children, roots := mapchildren(parents)
	eligible := newWorklist(roots)
	pending := make(map[string][]string)
	done := make(map[string]bool, len(parents))
	sorted := make([]string, 0, len(parents))

	for !eligible.empty() {
		n := picker.pick(eligible)
		eligible.remove(n)
		sorted = append(sorted, n)
		done[n] = true

		for _, c := range children[n] {
			waiting, seen := pending[c]
			if !seen {
				waiting = append([]string(nil), parents[c]...)
			}
			idx := -1
			for i, p := range waiting {
				if p == n {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, &CycleError{Child: c, Parent: n}
			}
			waiting = append(waiting[:idx], waiting[idx+1:]...)
			pending[c] = waiting
			if len(waiting) == 0 {
				// All parents are scheduled, the child is eligible.
				eligible.pushFront(c)
			}
		}
	}

	if len(sorted) != len(parents) {
		var unsorted []string
		for _, n := range parents.sortedKeys() {
			if !done[n] {
				unsorted = append(unsorted, n)
			}
		}
		return nil, &CycleError{Unsorted: unsorted}
	}
	return sorted, nil
}
