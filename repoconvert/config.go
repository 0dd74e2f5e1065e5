// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/pflag"
)

// settings is everything the command line and the config file can set.
// The hcl tags name the config-file attributes.
type settings struct {
	SourceType   string   `hcl:"source_type,optional"`
	DestType     string   `hcl:"dest_type,optional"`
	Revs         []string `hcl:"revs,optional"`
	RevMapFormat string   `hcl:"revmap_format,optional"`
	Sort         string   `hcl:"sort,optional"`
	SpliceMap    string   `hcl:"splicemap,optional"`
	AuthorMap    string   `hcl:"authormap,optional"`
	BranchMap    string   `hcl:"branchmap,optional"`
	FileMap      string   `hcl:"filemap,optional"`
	Encoding     string   `hcl:"encoding,optional"`
	Full         bool     `hcl:"full,optional"`
	SkipTags     bool     `hcl:"skip_tags,optional"`
	Debug        []string `hcl:"debug,optional"`
	Progress     bool     `hcl:"progress,optional"`
	Quiet        bool     `hcl:"quiet,optional"`
	BackupRevMap bool     `hcl:"backup_revmap,optional"`
}

// sortFlags are the one-per-mode switches; at most one may be given.
var sortFlags = []string{"branchsort", "datesort", "sourcesort", "closesort"}

// loadConfig reads an HCL config file.
func loadConfig(path string) (*settings, error) {
	var cfg settings
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return &cfg, nil
}

// merge fills in from the config file whatever was not given as a flag.
func (s *settings) merge(cfg *settings, flags *pflag.FlagSet) {
	str := func(flag string, dst *string, val string) {
		if !flags.Changed(flag) && val != "" {
			*dst = val
		}
	}
	boolean := func(flag string, dst *bool, val bool) {
		if !flags.Changed(flag) && val {
			*dst = val
		}
	}
	str("source-type", &s.SourceType, cfg.SourceType)
	str("dest-type", &s.DestType, cfg.DestType)
	str("revmap-format", &s.RevMapFormat, cfg.RevMapFormat)
	str("splicemap", &s.SpliceMap, cfg.SpliceMap)
	str("authormap", &s.AuthorMap, cfg.AuthorMap)
	str("branchmap", &s.BranchMap, cfg.BranchMap)
	str("filemap", &s.FileMap, cfg.FileMap)
	str("encoding", &s.Encoding, cfg.Encoding)
	boolean("full", &s.Full, cfg.Full)
	boolean("skip-tags", &s.SkipTags, cfg.SkipTags)
	boolean("progress", &s.Progress, cfg.Progress)
	boolean("quiet", &s.Quiet, cfg.Quiet)
	boolean("backup-revmap", &s.BackupRevMap, cfg.BackupRevMap)
	if !flags.Changed("rev") && len(cfg.Revs) > 0 {
		s.Revs = cfg.Revs
	}
	if !flags.Changed("debug") && len(cfg.Debug) > 0 {
		s.Debug = cfg.Debug
	}
	sortGiven := false
	for _, name := range sortFlags {
		sortGiven = sortGiven || flags.Changed(name)
	}
	if !sortGiven && cfg.Sort != "" {
		s.Sort = cfg.Sort
	}
}
