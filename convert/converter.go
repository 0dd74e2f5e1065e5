// The conversion driver.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"context"
	"fmt"
	"os"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Options are the user's choices for one conversion.
type Options struct {
	// Full makes the Sink receive every file of each revision rather
	// than only the modified ones.
	Full bool
	// SkipTags leaves tags alone; bookmarks are still converted.
	SkipTags      bool
	SpliceMapPath string
	AuthorMapPath string
	BranchMapPath string
	FileMapPath   string
	// Encoding of the source's metadata; empty means UTF-8.
	Encoding string
	// Operator is stamped into the author map when it is written back.
	Operator string
	// Filesystem the map files live in; the host filesystem if nil.
	Filesystem billy.Filesystem
	// Control receives log and status output; silent if nil.
	Control *Control
}

// Converter replays the unconverted part of a Source's history into a
// Sink.
type Converter struct {
	ctl       *Control
	opts      Options
	fs        billy.Filesystem
	source    Source // possibly wrapped by a file map
	rawsource Source
	dest      Sink
	revmap    RevMap

	commitcache map[string]*Commit
	authors     *authorMap
	authorfile  string
	splicemap   SpliceMap
	branchmap   map[string]string
	recoder     *recoder

	// revisions copied during this run
	converted int
}

// NewConverter reads the map files named in opts and prepares a run.
// Nothing is written until Convert is called.
func NewConverter(source Source, sink Sink, revmap RevMap, opts Options) (*Converter, error) {
	c := &Converter{
		ctl:         opts.Control,
		opts:        opts,
		fs:          opts.Filesystem,
		source:      source,
		rawsource:   source,
		dest:        sink,
		revmap:      revmap,
		commitcache: make(map[string]*Commit),
		authors:     newAuthorMap(),
	}
	if c.ctl == nil {
		c.ctl = quietControl()
	}
	if c.fs == nil {
		c.fs = osfs.New("/")
	}
	var err error
	if c.recoder, err = newRecoder(opts.Encoding); err != nil {
		return nil, err
	}

	c.authorfile = sink.AuthorFile()
	if c.authorfile != "" {
		if err = c.authors.readFile(c.ctl, c.fs, c.authorfile, false); err != nil {
			return nil, err
		}
	}
	if opts.AuthorMapPath != "" {
		if err = c.authors.readFile(c.ctl, c.fs, opts.AuthorMapPath, true); err != nil {
			return nil, err
		}
	}
	if c.splicemap, err = readSpliceMap(c.fs, opts.SpliceMapPath, source); err != nil {
		return nil, err
	}
	if c.branchmap, err = readBranchMap(c.fs, opts.BranchMapPath); err != nil {
		return nil, err
	}
	if opts.FileMapPath != "" {
		fm, err := readFileMap(c.fs, opts.FileMapPath)
		if err != nil {
			return nil, err
		}
		c.source = newFilemapSource(source, fm)
		sink.SetFilemapMode(true)
	}
	return c, nil
}

// Convert runs the conversion.  On any return, including a cancelled
// ctx, the revision map holds exactly the revisions that reached the
// Sink, so running again picks up where this run stopped.
func (c *Converter) Convert(ctx context.Context, mode SortMode) (err error) {
	if err = checkSortMode(mode, c.rawsource); err != nil {
		return err
	}
	c.converted = 0
	defer func() {
		if cerr := c.cleanup(); err == nil {
			err = cerr
		}
	}()
	defer func() {
		if e := catch("convert", recover()); e != nil {
			c.ctl.baton.endcounter()
			c.ctl.baton.endProgress()
			err = e
		}
	}()

	if err = c.rawsource.Before(); err != nil {
		return fmt.Errorf("while preparing source: %w", err)
	}
	if err = c.dest.Before(); err != nil {
		return fmt.Errorf("while preparing destination: %w", err)
	}
	if s, ok := c.rawsource.(RevMapSetter); ok {
		s.SetRevMap(c.revmap)
	}

	c.ctl.respond("scanning source...")
	heads, err := c.source.GetHeads()
	if err != nil {
		return fmt.Errorf("while reading heads: %w", err)
	}
	parents, err := c.walktree(heads)
	if err != nil {
		return err
	}
	if err = c.mergeSpliceMap(parents, c.splicemap); err != nil {
		return err
	}

	c.ctl.respond("sorting...")
	picker, err := newSorter(mode, parents, c.commitcache)
	if err != nil {
		return err
	}
	order, err := toposort(parents, picker)
	if err != nil {
		return err
	}

	num := len(order)
	c.ctl.respond("converting...")
	c.ctl.baton.startProgress("converting", uint64(num))
	for i, rev := range order {
		if err = ctx.Err(); err != nil {
			c.ctl.baton.endProgress()
			return fmt.Errorf("conversion stopped after %d of %d revisions: %w", i, len(order), err)
		}
		num--
		c.ctl.respond("%d %s", num, c.commitcache[rev].summary())
		c.copy(rev)
		c.converted++
		c.ctl.baton.percentProgress(uint64(i + 1))
	}
	c.ctl.baton.endProgress()

	if !c.opts.SkipTags {
		if err = c.remapTags(); err != nil {
			return err
		}
	}
	if err = c.remapBookmarks(); err != nil {
		return err
	}
	return c.writeAuthorMap()
}

// Converted is the number of revisions written to the Sink by the last
// call to Convert.
func (c *Converter) Converted() int {
	return c.converted
}

// copy replays one revision into the Sink and records the result.
// Failures are thrown as "convert" exceptions.
func (c *Converter) copy(rev string) {
	commit := c.commitcache[rev]
	changes, err := c.source.GetChanges(rev, c.opts.Full)
	if err != nil {
		panic(throw("convert", "while reading changes of %s: %v", shortRev(rev), err))
	}

	if changes.Alias != "" {
		dest := SkipRev
		if changes.Alias != SkipRev {
			var ok bool
			if dest, ok = c.revmap.Get(changes.Alias); !ok {
				panic(throw("convert", "%s is an alias of unconverted revision %s",
					shortRev(rev), shortRev(changes.Alias)))
			}
		}
		if c.ctl.logEnable(LogEXTRACT) {
			c.ctl.logit("%s is an alias, mapped to %s", shortRev(rev), shortRev(dest))
		}
		c.record(rev, dest)
		return
	}

	pbranches := make([]ParentBranch, 0, len(commit.Parents))
	for _, prev := range commit.Parents {
		pc, ok := c.commitcache[prev]
		if !ok {
			if pc, err = c.cachecommit(prev); err != nil {
				panic(throw("convert", "%v", err))
			}
		}
		mapped, ok := c.revmap.Get(prev)
		if !ok {
			panic(throw("convert", "parent %s of %s has no mapping", shortRev(prev), shortRev(rev)))
		}
		pbranches = append(pbranches, ParentBranch{Parent: mapped, Branch: pc.Branch})
	}
	c.dest.SetBranch(commit.Branch, pbranches)

	var parents []string
	if spliced, ok := c.splicemap[rev]; ok {
		for _, p := range spliced {
			parents = append(parents, lookup(c.revmap, p, p))
		}
	} else {
		for _, pb := range pbranches {
			parents = append(parents, pb.Parent)
		}
		for _, op := range commit.OptParents {
			if mapped, ok := c.revmap.Get(op); ok {
				parents = append(parents, mapped)
			}
		}
	}

	cleanp2 := changes.CleanP2
	if len(parents) != 2 || cleanp2 == nil {
		cleanp2 = make(map[string]bool)
	}

	expected := len(changes.Files)
	if len(parents) >= 3 {
		expected *= len(parents) - 1
	}
	source := newProgressSource(c.source, c.ctl.baton, expected)
	newnode, err := c.dest.PutCommit(changes.Files, changes.Copies, parents,
		commit, source, c.revmap, c.opts.Full, cleanp2)
	source.close()
	if err != nil {
		panic(throw("convert", "while writing %s: %v", shortRev(rev), err))
	}
	if c.ctl.logEnable(LogEXTRACT) {
		c.ctl.logit("%s -> %s on branch %q, parents %s",
			shortRev(rev), shortRev(newnode), commit.Branch, revlist(parents))
	}
	c.rawsource.Converted(rev, newnode)
	c.record(rev, newnode)
}

func (c *Converter) record(rev string, dest string) {
	if err := c.revmap.Set(rev, dest); err != nil {
		panic(throw("convert", "while recording %s: %v", shortRev(rev), err))
	}
}

// translate maps source revisions through the revision map, dropping
// anything skipped or not converted.
func (c *Converter) translate(refs map[string]string) map[string]string {
	out := make(map[string]string, len(refs))
	for name, rev := range refs {
		mapped, ok := c.revmap.Get(rev)
		if !ok || mapped == SkipRev {
			if c.ctl.logEnable(LogTAGFIX) {
				c.ctl.logit("dropping %s, %s is not converted", name, shortRev(rev))
			}
			continue
		}
		out[name] = mapped
	}
	return out
}

// remapTags writes the tag set.  A Sink that records tags in a commit
// of its own reports the commit it superseded; the revision map entry
// that pointed at that commit is moved to the new one.
func (c *Converter) remapTags() error {
	tags, err := c.rawsource.GetTags()
	if err != nil {
		return fmt.Errorf("while reading tags: %w", err)
	}
	ctags := c.translate(tags)
	if c.converted == 0 || len(ctags) == 0 {
		return nil
	}
	c.ctl.respond("updating tags")
	nrev, tagsparent, err := c.dest.PutTags(ctags)
	if err != nil {
		return fmt.Errorf("while writing tags: %w", err)
	}
	if nrev == "" || tagsparent == "" {
		return nil
	}
	for _, key := range c.revmap.Keys() {
		if v, _ := c.revmap.Get(key); v == tagsparent {
			if c.ctl.logEnable(LogTAGFIX) {
				c.ctl.logit("tag commit %s supersedes %s for %s",
					shortRev(nrev), shortRev(tagsparent), shortRev(key))
			}
			if err := c.revmap.Set(key, nrev); err != nil {
				return fmt.Errorf("while recording tag commit: %w", err)
			}
			break
		}
	}
	return nil
}

func (c *Converter) remapBookmarks() error {
	bookmarks, err := c.rawsource.GetBookmarks()
	if err != nil {
		return fmt.Errorf("while reading bookmarks: %w", err)
	}
	cbookmarks := c.translate(bookmarks)
	if c.converted == 0 || len(cbookmarks) == 0 {
		return nil
	}
	c.ctl.respond("updating bookmarks")
	if err := c.dest.PutBookmarks(cbookmarks); err != nil {
		return fmt.Errorf("while writing bookmarks: %w", err)
	}
	return nil
}

// writeAuthorMap saves the merged author map next to the destination
// so the next run picks it up without being told.
func (c *Converter) writeAuthorMap() error {
	if c.authorfile == "" || c.opts.AuthorMapPath == "" {
		return nil
	}
	c.ctl.respond("writing author map file %s", c.authorfile)
	return c.authors.write(c.fs, c.authorfile, c.opts.Operator)
}

// cleanup releases everything Convert acquired.  All steps run; the
// first error is returned.
func (c *Converter) cleanup() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(c.dest.After())
	keep(c.rawsource.After())
	keep(c.revmap.Close())
	return first
}

// progressSource counts file fetches on the status line while the
// Sink writes a commit.
type progressSource struct {
	Source
	baton *Baton
}

func newProgressSource(source Source, baton *Baton, expected int) *progressSource {
	baton.startcounter(fmt.Sprintf("getting files %%d of %d", expected), 0)
	return &progressSource{Source: source, baton: baton}
}

func (s *progressSource) GetFile(path string, rev string) ([]byte, string, error) {
	s.baton.bumpcounter()
	return s.Source.GetFile(path, rev)
}

func (s *progressSource) close() {
	s.baton.endcounter()
}

// RemoveArtifacts deletes what a Sink created on disk.  Callers use it
// when a conversion cannot start after the Sink was opened.
func RemoveArtifacts(ctl *Control, sink Sink) {
	creator, ok := sink.(ArtifactCreator)
	if !ok {
		return
	}
	if ctl == nil {
		ctl = quietControl()
	}
	for _, path := range creator.Created() {
		if err := os.RemoveAll(path); err != nil {
			ctl.croak("could not remove %s: %v", path, err)
		}
	}
}
