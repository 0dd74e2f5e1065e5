// Package convert is the repository-conversion engine.
//
// A conversion reads history from a Source, works out which revisions
// the destination does not have yet, puts them in an order where every
// revision follows its parents, and replays them one by one into a Sink.
// The only durable state is the revision map, which records for every
// source revision the destination revision it became.  Because each
// revision is recorded as soon as the Sink has accepted it, an
// interrupted conversion resumes where it stopped and a conversion with
// nothing new to do writes nothing.
//
//  +--------+    +----------+    +--------+    +----------+    +------+
//  | Source |--->| walktree |--->| splice |--->| toposort |--->| copy |--->Sink
//  +--------+    +----------+    +--------+    +----------+    +------+
//                     ^                                           |
//                     +--------------- revision map <-------------+
//
// Backends for individual version-control systems are not part of this
// package. They implement Source and Sink and register themselves with
// RegisterSource and RegisterSink.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause
package convert

import (
	"fmt"
	"sort"
	"strings"
)

// SkipRev marks a revision that was deliberately left out of the
// conversion. It can appear as a revision-map value and as an alias.
const SkipRev = "SKIP"

// Commit is the source's description of one revision.
type Commit struct {
	Author     string
	Date       string   // anything parseDate understands; "0 0" if unknown
	Desc       string
	Parents    []string // converted and used as parents
	OptParents []string // used as extra parents only if already converted
	Branch     string
	Rev        string
	Extra      map[string]string
	SortKey    int64 // native order, meaningful only with HasNativeOrder
	SaveRev    bool
}

// NewCommit fills in the defaults a destination needs.
func NewCommit(author, date, desc string, parents []string) *Commit {
	c := &Commit{
		Author:  author,
		Date:    date,
		Desc:    desc,
		Parents: parents,
		Extra:   make(map[string]string),
		SaveRev: true,
	}
	c.normalize()
	return c
}

func (c *Commit) normalize() {
	if c.Author == "" {
		c.Author = "unknown"
	}
	if c.Date == "" {
		c.Date = "0 0"
	}
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
}

// isClosed reports whether the revision closes its branch.
func (c *Commit) isClosed() bool {
	_, ok := c.Extra["close"]
	return ok
}

// summary is the first line of the change comment.
func (c *Commit) summary() string {
	if i := strings.IndexByte(c.Desc, '\n'); i >= 0 {
		return c.Desc[:i]
	}
	return c.Desc
}

// FileChange names a file touched by a revision and the revision its
// content should be fetched from.
type FileChange struct {
	Path string
	Rev  string
}

// Changes is what a revision did to the tree.
//
// If Alias is non-empty the revision is a pure alias of another, already
// converted revision (or of SkipRev) and the other members are unused.
type Changes struct {
	Files   []FileChange
	Copies  map[string]string // destination path -> copy source path
	CleanP2 map[string]bool   // files clean against the second parent
	Alias   string
}

// ParentBranch pairs a converted parent with the branch it lives on.
type ParentBranch struct {
	Parent string
	Branch string
}

// ParentsGraph maps every revision to be converted to those of its
// parents that are also to be converted.
type ParentsGraph map[string][]string

// sortedKeys returns the graph's revisions in a stable order.
func (g ParentsGraph) sortedKeys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Source is a repository that history is read from.
type Source interface {
	// Acquire and release whatever the backend needs (locks, servers).
	Before() error
	After() error
	// Heads of the history to be converted.
	GetHeads() ([]string, error)
	// Total number of revisions; used only to scale progress meters.
	NumCommits() int
	GetCommit(rev string) (*Commit, error)
	// GetChanges lists the files changed by rev.  With full set every
	// file of the revision is returned, not just the modified ones.
	GetChanges(rev string, full bool) (*Changes, error)
	// GetFile returns content and mode flags ("", "x", "l") of a file.
	GetFile(path string, rev string) ([]byte, string, error)
	// CheckRevFormat validates a revision identifier from a splice map.
	CheckRevFormat(rev string) error
	HasNativeOrder() bool
	HasNativeClose() bool
	// Converted is a notification that rev became destRev.
	Converted(rev string, destRev string)
	GetTags() (map[string]string, error)
	GetBookmarks() (map[string]string, error)
}

// RevMapSetter is implemented by sources that want to see the revision
// map before the conversion starts, typically to resume incrementally.
type RevMapSetter interface {
	SetRevMap(revmap RevMap)
}

// Sink is a repository that history is written to.
type Sink interface {
	Before() error
	After() error
	// SetBranch announces the branch of the next commit and the
	// destination ids and branches of its parents.
	SetBranch(branch string, parents []ParentBranch)
	PutCommit(files []FileChange, copies map[string]string, parents []string,
		commit *Commit, source Source, revmap RevMap, full bool,
		cleanp2 map[string]bool) (string, error)
	// PutTags writes the tag set.  If that created a commit, the new id
	// and the id of the commit it superseded are returned.
	PutTags(tags map[string]string) (string, string, error)
	PutBookmarks(bookmarks map[string]string) error
	HasCommitFromMap(rev string) bool
	HasCommitForSplicemap(rev string) bool
	AuthorFile() string
	RevMapFile() string
	SetFilemapMode(active bool)
}

// ArtifactCreator is implemented by sinks that create files or
// directories when opened, so they can be removed if the conversion
// cannot even start.
type ArtifactCreator interface {
	Created() []string
}

// SortMode selects the ordering policy of the scheduler.
type SortMode string

// The scheduling policies.
const (
	BranchSort SortMode = "branchsort"
	DateSort   SortMode = "datesort"
	SourceSort SortMode = "sourcesort"
	CloseSort  SortMode = "closesort"
)

// SortModes lists every valid mode.
var SortModes = []SortMode{BranchSort, DateSort, SourceSort, CloseSort}

// ParseSortMode turns a user-supplied name into a SortMode.
func ParseSortMode(name string) (SortMode, error) {
	for _, m := range SortModes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", configError("unknown sort mode: %s", name)
}

// checkSortMode verifies that the source can honor mode.
func checkSortMode(mode SortMode, source Source) error {
	switch mode {
	case BranchSort, DateSort:
	case SourceSort:
		if !source.HasNativeOrder() {
			return configError("--sourcesort is not supported by this data source")
		}
	case CloseSort:
		if !source.HasNativeClose() {
			return configError("--closesort is not supported by this data source")
		}
	default:
		return configError("unknown sort mode: %s", mode)
	}
	return nil
}

func (m SortMode) String() string {
	return string(m)
}

// shortRev abbreviates long hashes in messages.
func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func revlist(revs []string) string {
	short := make([]string, len(revs))
	for i, r := range revs {
		short[i] = shortRev(r)
	}
	return fmt.Sprintf("[%s]", strings.Join(short, ", "))
}
