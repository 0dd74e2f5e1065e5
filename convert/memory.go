// In-memory backends, for tests and for embedding programs that build
// histories on the fly.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"fmt"
	"regexp"
	"sort"
)

// MemorySource is a Source whose history is given up front.
type MemorySource struct {
	Commits   map[string]*Commit
	Changes   map[string]*Changes
	Contents  map[string][]byte // "rev:path" -> content
	Heads     []string
	Tags      map[string]string
	Bookmarks map[string]string
	// Errors makes GetChanges fail for a revision.
	Errors      map[string]error
	NativeOrder bool
	NativeClose bool

	// Converted notifications, in order.
	ConvertedLog [][2]string
	RevMap       RevMap
	Opened       int
	Closed       int
}

var revFormatRE = regexp.MustCompile(`^[0-9A-Za-z._-]+$`)

// NewMemorySource makes an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		Commits:   make(map[string]*Commit),
		Changes:   make(map[string]*Changes),
		Contents:  make(map[string][]byte),
		Tags:      make(map[string]string),
		Bookmarks: make(map[string]string),
		Errors:    make(map[string]error),
	}
}

// Add records a revision touching files.  Sort keys follow the order
// revisions are added.
func (s *MemorySource) Add(rev string, parents []string, branch string, date string, files ...string) *Commit {
	c := NewCommit("", date, "revision "+rev+"\n", parents)
	c.Rev = rev
	c.Branch = branch
	c.SortKey = int64(len(s.Commits))
	s.Commits[rev] = c
	ch := &Changes{Copies: make(map[string]string), CleanP2: make(map[string]bool)}
	for _, f := range files {
		ch.Files = append(ch.Files, FileChange{Path: f, Rev: rev})
		s.Contents[rev+":"+f] = []byte(rev + " " + f + "\n")
	}
	s.Changes[rev] = ch
	return c
}

// SetHeads computes the heads as the revisions nobody has as a parent.
func (s *MemorySource) SetHeads() {
	isParent := make(map[string]bool)
	for _, c := range s.Commits {
		for _, p := range c.Parents {
			isParent[p] = true
		}
	}
	s.Heads = nil
	for rev := range s.Commits {
		if !isParent[rev] {
			s.Heads = append(s.Heads, rev)
		}
	}
	sort.Strings(s.Heads)
}

// Before counts the acquisitions.
func (s *MemorySource) Before() error {
	s.Opened++
	return nil
}

// After counts the releases.
func (s *MemorySource) After() error {
	s.Closed++
	return nil
}

// GetHeads returns Heads.
func (s *MemorySource) GetHeads() ([]string, error) {
	return s.Heads, nil
}

// NumCommits is the number of known revisions.
func (s *MemorySource) NumCommits() int {
	return len(s.Commits)
}

// GetCommit returns a copy of the stored commit, so that the caller's
// edits do not leak back into the source.
func (s *MemorySource) GetCommit(rev string) (*Commit, error) {
	c, ok := s.Commits[rev]
	if !ok {
		return nil, fmt.Errorf("unknown revision %s", rev)
	}
	dup := *c
	dup.Parents = append([]string(nil), c.Parents...)
	dup.OptParents = append([]string(nil), c.OptParents...)
	dup.Extra = make(map[string]string, len(c.Extra))
	for k, v := range c.Extra {
		dup.Extra[k] = v
	}
	return &dup, nil
}

// GetChanges returns the recorded changes of rev.
func (s *MemorySource) GetChanges(rev string, full bool) (*Changes, error) {
	if err := s.Errors[rev]; err != nil {
		return nil, err
	}
	ch, ok := s.Changes[rev]
	if !ok {
		return &Changes{}, nil
	}
	return ch, nil
}

// GetFile returns the content stored for path at rev.
func (s *MemorySource) GetFile(path string, rev string) ([]byte, string, error) {
	data, ok := s.Contents[rev+":"+path]
	if !ok {
		return nil, "", fmt.Errorf("no file %s in revision %s", path, rev)
	}
	return data, "", nil
}

// CheckRevFormat accepts word-like identifiers.
func (s *MemorySource) CheckRevFormat(rev string) error {
	if !revFormatRE.MatchString(rev) {
		return fmt.Errorf("%q is not a valid revision identifier", rev)
	}
	return nil
}

// HasNativeOrder reports whether SortKey is meaningful.
func (s *MemorySource) HasNativeOrder() bool {
	return s.NativeOrder
}

// HasNativeClose reports whether the "close" extra is meaningful.
func (s *MemorySource) HasNativeClose() bool {
	return s.NativeClose
}

// Converted logs the notification.
func (s *MemorySource) Converted(rev string, destRev string) {
	s.ConvertedLog = append(s.ConvertedLog, [2]string{rev, destRev})
}

// GetTags returns Tags.
func (s *MemorySource) GetTags() (map[string]string, error) {
	return s.Tags, nil
}

// GetBookmarks returns Bookmarks.
func (s *MemorySource) GetBookmarks() (map[string]string, error) {
	return s.Bookmarks, nil
}

// SetRevMap remembers the revision map.
func (s *MemorySource) SetRevMap(revmap RevMap) {
	s.RevMap = revmap
}

// MemoryCommit is a revision as a MemorySink stored it.
type MemoryCommit struct {
	ID       string
	Source   string
	Branch   string
	Author   string
	Desc     string
	Parents  []string
	Files    map[string][]byte
	Copies   map[string]string
	CleanP2  map[string]bool
	Parented []ParentBranch
}

// MemorySink is a Sink that keeps what it is given.
type MemorySink struct {
	Commits   map[string]*MemoryCommit
	Order     []string
	Tags      map[string]string
	Bookmarks map[string]string
	// TagCommits makes PutTags record tags in a commit of their own on
	// top of the most recent commit, which it then reports superseded.
	TagCommits bool
	// FailOn makes PutCommit fail for the given source revision.
	FailOn      string
	AuthorPath  string
	RevMapPath  string
	FilemapMode bool
	Artifacts   []string

	PutCommitCalls    int
	PutTagsCalls      int
	PutBookmarksCalls int
	Opened            int
	Closed            int

	branch  string
	parents []ParentBranch
}

// NewMemorySink makes an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		Commits:   make(map[string]*MemoryCommit),
		Tags:      make(map[string]string),
		Bookmarks: make(map[string]string),
	}
}

// Before counts the acquisitions.
func (s *MemorySink) Before() error {
	s.Opened++
	return nil
}

// After counts the releases.
func (s *MemorySink) After() error {
	s.Closed++
	return nil
}

// SetBranch remembers the branch for the next PutCommit.
func (s *MemorySink) SetBranch(branch string, parents []ParentBranch) {
	s.branch = branch
	s.parents = parents
}

func (s *MemorySink) newID() string {
	return fmt.Sprintf("d%d", len(s.Order)+1)
}

// PutCommit stores the revision, fetching every file through source.
func (s *MemorySink) PutCommit(files []FileChange, copies map[string]string, parents []string,
	commit *Commit, source Source, revmap RevMap, full bool,
	cleanp2 map[string]bool) (string, error) {
	s.PutCommitCalls++
	if commit.Rev == s.FailOn {
		return "", fmt.Errorf("refusing to write %s", commit.Rev)
	}
	mc := &MemoryCommit{
		ID:       s.newID(),
		Source:   commit.Rev,
		Branch:   s.branch,
		Author:   commit.Author,
		Desc:     commit.Desc,
		Parents:  append([]string(nil), parents...),
		Files:    make(map[string][]byte, len(files)),
		Copies:   copies,
		CleanP2:  cleanp2,
		Parented: s.parents,
	}
	for _, f := range files {
		data, _, err := source.GetFile(f.Path, f.Rev)
		if err != nil {
			return "", err
		}
		mc.Files[f.Path] = data
	}
	s.Commits[mc.ID] = mc
	s.Order = append(s.Order, mc.ID)
	return mc.ID, nil
}

// PutTags replaces the tag set.
func (s *MemorySink) PutTags(tags map[string]string) (string, string, error) {
	s.PutTagsCalls++
	s.Tags = make(map[string]string, len(tags))
	for k, v := range tags {
		s.Tags[k] = v
	}
	if !s.TagCommits || len(s.Order) == 0 {
		return "", "", nil
	}
	tip := s.Order[len(s.Order)-1]
	mc := &MemoryCommit{
		ID:      s.newID(),
		Branch:  s.Commits[tip].Branch,
		Author:  "convert-repo",
		Desc:    "update tags\n",
		Parents: []string{tip},
	}
	s.Commits[mc.ID] = mc
	s.Order = append(s.Order, mc.ID)
	return mc.ID, tip, nil
}

// PutBookmarks replaces the bookmark set.
func (s *MemorySink) PutBookmarks(bookmarks map[string]string) error {
	s.PutBookmarksCalls++
	s.Bookmarks = make(map[string]string, len(bookmarks))
	for k, v := range bookmarks {
		s.Bookmarks[k] = v
	}
	return nil
}

// HasCommitFromMap reports whether rev is stored.
func (s *MemorySink) HasCommitFromMap(rev string) bool {
	_, ok := s.Commits[rev]
	return ok
}

// HasCommitForSplicemap reports whether rev is stored.
func (s *MemorySink) HasCommitForSplicemap(rev string) bool {
	_, ok := s.Commits[rev]
	return ok
}

// AuthorFile is AuthorPath.
func (s *MemorySink) AuthorFile() string {
	return s.AuthorPath
}

// RevMapFile is RevMapPath.
func (s *MemorySink) RevMapFile() string {
	return s.RevMapPath
}

// SetFilemapMode records the mode.
func (s *MemorySink) SetFilemapMode(active bool) {
	s.FilemapMode = active
}

// Created lists Artifacts.
func (s *MemorySink) Created() []string {
	return s.Artifacts
}

// Ensure the memory backends implement the interfaces
var _ Source = (*MemorySource)(nil)
var _ RevMapSetter = (*MemorySource)(nil)
var _ Sink = (*MemorySink)(nil)
var _ ArtifactCreator = (*MemorySink)(nil)
