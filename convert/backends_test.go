// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// The registry is process-wide, so each test uses its own names.

func TestOpenSourceProbing(t *testing.T) {
	var tried []string
	RegisterSource("detect-none", func(path string, revs []string) (Source, error) {
		tried = append(tried, "detect-none")
		return nil, &NoRepoError{Backend: "detect-none", Path: path}
	}, "")
	RegisterSource("detect-notool", func(path string, revs []string) (Source, error) {
		tried = append(tried, "detect-notool")
		return nil, &MissingToolError{Backend: "detect-notool", Tool: "frob"}
	}, DateSort)
	RegisterSource("detect-yes", func(path string, revs []string) (Source, error) {
		tried = append(tried, "detect-yes")
		src := linearSource()
		return src, nil
	}, SourceSort)

	src, mode, err := OpenSource(nil, "/repo", "", nil)
	assertNoError(t, err)
	assertTrue(t, src != nil)
	assertEqual(t, string(mode), "sourcesort")
	// Backends registered by other tests may come earlier.
	assertListEqual(t, tried[len(tried)-3:], []string{"detect-none", "detect-notool", "detect-yes"})

	tried = nil
	_, mode, err = OpenSource(nil, "/repo", "detect-none", nil)
	var norepo *NoRepoError
	assertTrue(t, errors.As(err, &norepo))
	assertEqual(t, norepo.Backend, "detect-none")
	assertErrorContains(t, err, "/repo: missing or unsupported repository")
	assertErrorContains(t, err, "/repo does not look like a detect-none repository")
	assertListEqual(t, tried, []string{"detect-none"})
	assertEqual(t, string(mode), "")

	_, _, err = OpenSource(nil, "/repo", "nosuchvcs", nil)
	assertErrorContains(t, err, "nosuchvcs: invalid source repository type")
}

func TestOpenSourceRealFailure(t *testing.T) {
	boom := errors.New("corrupt repository")
	RegisterSource("detect-broken", func(path string, revs []string) (Source, error) {
		return nil, boom
	}, "")
	_, _, err := OpenSource(nil, "/repo", "detect-broken", nil)
	assertTrue(t, errors.Is(err, boom))
}

func TestRegisterTwicePanics(t *testing.T) {
	RegisterSink("detect-twice", func(path string) (Sink, error) { return NewMemorySink(), nil })
	defer func() {
		assertTrue(t, recover() != nil)
	}()
	RegisterSink("detect-twice", func(path string) (Sink, error) { return NewMemorySink(), nil })
}

func TestOpenBackendsRemovesArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "created")
	assertNoError(t, os.MkdirAll(dir, 0755))
	RegisterSink("detect-creating", func(path string) (Sink, error) {
		sink := NewMemorySink()
		sink.Artifacts = []string{dir}
		return sink, nil
	})
	RegisterSource("detect-absent", func(path string, revs []string) (Source, error) {
		return nil, &NoRepoError{Backend: "detect-absent", Path: path}
	}, "")

	_, _, _, err := OpenBackends(nil, "/src", "detect-absent", nil, "/dst", "detect-creating")
	assertErrorContains(t, err, "missing or unsupported repository")
	_, statErr := os.Stat(dir)
	assertTrue(t, os.IsNotExist(statErr))

	_, _, _, err = OpenBackends(nil, "/src", "detect-absent", nil, "/dst", "nosuchsink")
	assertErrorContains(t, err, "nosuchsink: invalid destination repository type")
}

func TestBackendTypes(t *testing.T) {
	RegisterSource("detect-listed", func(path string, revs []string) (Source, error) {
		return linearSource(), nil
	}, "")
	RegisterSink("detect-listed", func(path string) (Sink, error) { return NewMemorySink(), nil })
	found := 0
	for _, name := range SourceTypes() {
		if name == "detect-listed" {
			found++
		}
	}
	for _, name := range SinkTypes() {
		if name == "detect-listed" {
			found++
		}
	}
	assertIntEqual(t, found, 2)

	source, sink, mode, err := OpenBackends(nil, "/src", "detect-listed", nil, "/dst", "detect-listed")
	assertNoError(t, err)
	assertTrue(t, source != nil && sink != nil)
	assertEqual(t, string(mode), "branchsort")
}
