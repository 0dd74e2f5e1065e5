// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLogMask(t *testing.T) {
	mask, err := ParseLogMask([]string{"warn", " Splice ", ""})
	assertNoError(t, err)
	assertTrue(t, mask == LogWARN|LogSPLICE)

	mask, err = ParseLogMask([]string{"all"})
	assertNoError(t, err)
	for _, bit := range LogTags {
		assertTrue(t, mask&bit != 0)
	}

	_, err = ParseLogMask([]string{"chatter"})
	assertErrorContains(t, err, `no such log class as "chatter"`)
}

func TestControlOutput(t *testing.T) {
	var out bytes.Buffer
	ctl := NewControl(&out, true)
	ctl.SetLogMask(LogWARN | LogTOPOLOGY)
	if ctl.logEnable(LogTOPOLOGY) {
		ctl.logit("graph has %d nodes", 3)
	}
	if ctl.logEnable(LogEXTRACT) {
		ctl.logit("not shown")
	}
	ctl.croak("something odd")
	ctl.respond("status %s", "line")
	ctl.SetQuiet(true)
	ctl.respond("hidden")
	assertNoError(t, ctl.Close())

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assertListEqual(t, lines, []string{
		"repoconvert: graph has 3 nodes",
		"repoconvert: warning: something odd",
		"status line",
	})
}

func TestRecoder(t *testing.T) {
	r, err := newRecoder("")
	assertNoError(t, err)
	assertEqual(t, r.recode("plain"), "plain")
	assertEqual(t, r.recode("bad\xffbyte"), "bad�byte")

	r, err = newRecoder("utf-8")
	assertNoError(t, err)
	assertEqual(t, r.recode("naïve"), "naïve")

	r, err = newRecoder("ISO-8859-1")
	assertNoError(t, err)
	c := NewCommit("Ren\xe9", "0 0", "caf\xe9\n", nil)
	c.Branch = "d\xe9v"
	r.recodeCommit(c)
	assertEqual(t, c.Author, "René")
	assertEqual(t, c.Desc, "café\n")
	assertEqual(t, c.Branch, "dév")
}

func TestQuietControlHasNoWriter(t *testing.T) {
	ctl := quietControl()
	assertTrue(t, ctl.baton == nil)
	ctl.respond("nobody hears this")
	ctl.croak("or this")
	ctl.baton.startProgress("converting", 2)
	ctl.baton.percentProgress(1)
	ctl.baton.endProgress()
	assertNoError(t, ctl.Close())
	assertNoError(t, ctl.Close())
}

func TestControlCloseTwice(t *testing.T) {
	var out bytes.Buffer
	ctl := NewControl(&out, false)
	ctl.respond("before")
	assertNoError(t, ctl.Close())
	assertNoError(t, ctl.Close())
	// Output after Close is dropped rather than blocking.
	ctl.respond("after")
	ctl.croak("late warning")
	ctl.baton.Sync()
	assertEqual(t, out.String(), "before\n")
}
