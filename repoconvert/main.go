// repoconvert converts the history of one version-control repository
// into another, incrementally.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	shutil "github.com/termie/go-shutil"
	"gitlab.com/esr/fqme"

	"gitlab.com/esr/repoconvert/convert"
)

// conversion holds what one invocation resolved from its arguments.
type conversion struct {
	settings
	source  string
	dest    string
	revmap  string
	config  string
	sorting map[string]*bool
}

func newConversion() *conversion {
	return &conversion{sorting: make(map[string]*bool)}
}

func newRootCommand(conv *conversion) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repoconvert SOURCE [DEST [REVMAP]]",
		Short: "Convert repositories between version-control systems",
		Long: `repoconvert replays the history of SOURCE into DEST, creating DEST if
needed.  The revision map REVMAP (by default kept inside DEST) records
what has been converted, so running the same command again converts only
new revisions.

Supported repository types: ` + typeList(),
		Args:          cobra.RangeArgs(1, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv.source = args[0]
			if len(args) > 1 {
				conv.dest = args[1]
			}
			if len(args) > 2 {
				conv.revmap = args[2]
			}
			if conv.config != "" {
				cfg, err := loadConfig(conv.config)
				if err != nil {
					return err
				}
				conv.merge(cfg, cmd.Flags())
			}
			if err := conv.pickSortMode(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return conv.run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&conv.SourceType, "source-type", "s", "", "source repository type")
	flags.StringVarP(&conv.DestType, "dest-type", "d", "", "destination repository type")
	flags.StringSliceVarP(&conv.Revs, "rev", "r", nil, "convert only these revisions and their ancestors")
	flags.StringVar(&conv.RevMapFormat, "revmap-format", "text", "revision map storage (text or sqlite)")
	flags.StringVar(&conv.SpliceMap, "splicemap", "", "file of parent overrides")
	flags.StringVarP(&conv.AuthorMap, "authormap", "A", "", "file of author renames")
	flags.StringVar(&conv.BranchMap, "branchmap", "", "file of branch renames")
	flags.StringVar(&conv.FileMap, "filemap", "", "file of path filters and renames")
	flags.StringVar(&conv.Encoding, "encoding", "", "character encoding of the source metadata")
	flags.BoolVar(&conv.Full, "full", false, "send every file of each revision, not just the changed ones")
	flags.BoolVar(&conv.SkipTags, "skip-tags", false, "do not convert tags")
	flags.StringSliceVar(&conv.Debug, "debug", nil, "enable log classes (comma separated, or all)")
	flags.BoolVar(&conv.Progress, "progress", false, "show a progress meter on a terminal")
	flags.BoolVarP(&conv.Quiet, "quiet", "q", false, "suppress status messages")
	flags.BoolVar(&conv.BackupRevMap, "backup-revmap", false, "copy the revision map aside before converting")
	flags.StringVar(&conv.config, "config", "", "HCL file supplying defaults for the options")
	for _, name := range sortFlags {
		conv.sorting[name] = flags.Bool(name, false, "schedule revisions by "+name)
	}
	return cmd
}

func typeList() string {
	sources, sinks := convert.SourceTypes(), convert.SinkTypes()
	if len(sources) == 0 && len(sinks) == 0 {
		return "none built in"
	}
	return fmt.Sprintf("sources %v, destinations %v", sources, sinks)
}

// pickSortMode turns the sort switches into a mode name.
func (conv *conversion) pickSortMode() error {
	chosen := ""
	for _, name := range sortFlags {
		if *conv.sorting[name] {
			if chosen != "" {
				return fmt.Errorf("--%s and --%s are mutually exclusive", chosen, name)
			}
			chosen = name
		}
	}
	if chosen != "" {
		conv.Sort = chosen
	}
	return nil
}

// operator names the person running the conversion, if it can be found.
func operator() string {
	name, email, err := fqme.WhoAmI()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func (conv *conversion) run(ctx context.Context) error {
	ctl := convert.NewControl(os.Stderr, conv.Progress)
	defer ctl.Close()
	ctl.SetQuiet(conv.Quiet)
	if len(conv.Debug) > 0 {
		mask, err := convert.ParseLogMask(conv.Debug)
		if err != nil {
			return err
		}
		ctl.SetLogMask(mask | convert.LogSHOUT | convert.LogWARN)
	}

	var override convert.SortMode
	if conv.Sort != "" {
		var err error
		if override, err = convert.ParseSortMode(conv.Sort); err != nil {
			return err
		}
	}
	if conv.dest == "" {
		conv.dest = filepath.Base(filepath.Clean(conv.source)) + "-converted"
	}
	source, sink, sorting, err := convert.OpenBackends(ctl,
		conv.source, conv.SourceType, conv.Revs, conv.dest, conv.DestType)
	if err != nil {
		return err
	}
	if override != "" {
		sorting = override
	}

	revmap, err := conv.openRevMap(sink)
	if err != nil {
		convert.RemoveArtifacts(ctl, sink)
		return err
	}
	opts := convert.Options{
		Full:          conv.Full,
		SkipTags:      conv.SkipTags,
		SpliceMapPath: absolute(conv.SpliceMap),
		AuthorMapPath: absolute(conv.AuthorMap),
		BranchMapPath: absolute(conv.BranchMap),
		FileMapPath:   absolute(conv.FileMap),
		Encoding:      conv.Encoding,
		Operator:      operator(),
		Control:       ctl,
	}
	converter, err := convert.NewConverter(source, sink, revmap, opts)
	if err != nil {
		revmap.Close()
		convert.RemoveArtifacts(ctl, sink)
		return err
	}
	return converter.Convert(ctx, sorting)
}

// openRevMap locates, optionally backs up, and opens the revision map.
func (conv *conversion) openRevMap(sink convert.Sink) (convert.RevMap, error) {
	if conv.revmap == "" {
		conv.revmap = sink.RevMapFile()
	}
	if conv.revmap == "" {
		return nil, fmt.Errorf("%s does not keep a revision map, give one on the command line", conv.dest)
	}
	path, err := filepath.Abs(conv.revmap)
	if err != nil {
		return nil, err
	}
	conv.revmap = path
	if conv.BackupRevMap {
		if _, err := os.Stat(path); err == nil {
			if _, err := shutil.Copy(path, path+".bak", false); err != nil {
				return nil, fmt.Errorf("while backing up %s: %w", path, err)
			}
		}
	}
	return convert.OpenRevMap(osfs.New("/"), path, convert.RevMapFormat(conv.RevMapFormat))
}

// absolute makes map paths usable from the root-based filesystem the
// converter reads them through.
func absolute(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func main() {
	if err := newRootCommand(newConversion()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "repoconvert: %v\n", err)
		os.Exit(1)
	}
}
