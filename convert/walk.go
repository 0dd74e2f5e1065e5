// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"fmt"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
	orderedset "github.com/emirpasic/gods/sets/linkedhashset"
)

// cachecommit fetches a commit from the source, cleans up its metadata
// and keeps it for the rest of the run.
func (c *Converter) cachecommit(rev string) (*Commit, error) {
	commit, err := c.source.GetCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("while reading commit %s: %w", shortRev(rev), err)
	}
	commit.normalize()
	c.recoder.recodeCommit(commit)
	commit.Author = c.authors.lookup(commit.Author)
	commit.Branch = mapbranch(commit.Branch, c.branchmap)
	c.commitcache[rev] = commit
	return commit, nil
}

// isConverted says whether rev is a boundary of the walk: either
// deliberately skipped or already present at the destination.
func (c *Converter) isConverted(rev string) bool {
	m, ok := c.revmap.Get(rev)
	if !ok {
		return false
	}
	return m == SkipRev || c.dest.HasCommitFromMap(m)
}

// walktree returns a graph that identifies the unconverted parents of
// every unconverted revision reachable from heads.
func (c *Converter) walktree(heads []string) (ParentsGraph, error) {
	visit := doublylinkedlist.New()
	for _, h := range heads {
		visit.Add(h)
	}
	known := orderedset.New()
	parents := make(ParentsGraph)

	c.ctl.baton.startProgress("scanning", uint64(c.source.NumCommits()))
	defer c.ctl.baton.endProgress()
	for !visit.Empty() {
		v, _ := visit.Get(0)
		visit.Remove(0)
		n := v.(string)
		if known.Contains(n) {
			continue
		}
		if c.isConverted(n) {
			continue
		}
		known.Add(n)
		c.ctl.baton.percentProgress(uint64(known.Size()))
		commit, err := c.cachecommit(n)
		if err != nil {
			return nil, err
		}
		parents[n] = make([]string, 0, len(commit.Parents))
		for _, p := range commit.Parents {
			parents[n] = append(parents[n], p)
			visit.Add(p)
		}
	}

	// Parents that turned out to be converted impose no ordering.
	for n, ps := range parents {
		pending := ps[:0]
		for _, p := range ps {
			if _, ok := parents[p]; ok {
				pending = append(pending, p)
			}
		}
		parents[n] = pending
	}
	if c.ctl.logEnable(LogTOPOLOGY) {
		c.ctl.logit("walktree: %d of about %d revisions need converting",
			known.Size(), c.source.NumCommits())
	}
	return parents, nil
}
