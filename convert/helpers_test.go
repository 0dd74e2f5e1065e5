// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"strings"
	"testing"

	difflib "github.com/ianbruene/go-difflib/difflib"
)

func assertBool(t *testing.T, see bool, expect bool) {
	t.Helper()
	if see != expect {
		t.Errorf("assertBool: expected %v saw %v", expect, see)
	}
}

func assertTrue(t *testing.T, see bool) {
	t.Helper()
	assertBool(t, see, true)
}

func assertEqual(t *testing.T, a string, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("assertEqual: expected %q == %q", a, b)
	}
}

func assertIntEqual(t *testing.T, a int, b int) {
	t.Helper()
	if a != b {
		t.Errorf("assertIntEqual: expected %d == %d", a, b)
	}
}

// assertListEqual compares string lists and shows a diff on mismatch.
func assertListEqual(t *testing.T, see []string, expect []string) {
	t.Helper()
	if strings.Join(see, "\n") == strings.Join(expect, "\n") && len(see) == len(expect) {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(expect, "\n") + "\n"),
		B:        difflib.SplitLines(strings.Join(see, "\n") + "\n"),
		FromFile: "expected",
		ToFile:   "seen",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	t.Errorf("list mismatch:\n%s", text)
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertErrorContains(t *testing.T, err error, fragment string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q, got none", fragment)
	}
	if !strings.Contains(err.Error(), fragment) {
		t.Fatalf("expected an error containing %q, got %q", fragment, err.Error())
	}
}
