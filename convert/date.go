// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var gitDateRE = regexp.MustCompile(`^[0-9]+\s*[+-][0-9]{4}$`)
var unixDateRE = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?\s+-?[0-9]+$`)
var zoneOffsetRE = regexp.MustCompile(`^([-+]?[0-9]{2})([0-9]{2})$`)

// locationFromZoneOffset makes a Go location object from a [+-]hhmm string.
// We don't get an actual TZ from such a date, just an offset, so the
// offset string is stored as the zone name.
func locationFromZoneOffset(offset string) (*time.Location, error) {
	m := zoneOffsetRE.FindStringSubmatch(offset)
	if m == nil || len(m) != 3 {
		return nil, errors.New("ill-formed timezone offset " + offset)
	}
	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	if hours < -14 || hours > 14 || mins > 59 {
		return nil, errors.New("dubious zone offset " + offset)
	}
	tzoff := (hours*60 + mins) * 60
	if strings.HasPrefix(offset, "-") {
		tzoff = (hours*60 - mins) * 60
	}
	return time.FixedZone(offset, tzoff), nil
}

// Date wraps a system time object; it is what the date sorter compares.
type Date struct {
	timestamp time.Time
}

// GitLogFormat - which git falsely claims is RFC2822-conformant.
const GitLogFormat = "Mon Jan 02 15:04:05 2006 -0700"

// RFC1123ZNoComma is the swapped format
const RFC1123ZNoComma = "Mon 02 Jan 2006 15:04:05 -0700"

// parseDate recognizes the date formats sources hand us:
//
//	"1300000000 -3600"       seconds, offset in seconds west of UTC
//	"1300000000 +0100"       seconds, git-style [+-]hhmm offset
//	RFC3339, RFC3339Nano, RFC1123Z and the git log layout.
//
// A bare "0 0" is the epoch, which is what sources use for "unknown".
func parseDate(text string) (Date, error) {
	var t Date
	text = strings.TrimSpace(text)
	if text == "" {
		return t, errors.New("empty timestamp")
	}
	if gitDateRE.MatchString(text) {
		fields := strings.Fields(text)
		if len(fields) == 1 {
			// "1300000000+0100"
			fields = []string{text[:len(text)-5], text[len(text)-5:]}
		}
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return t, err
		}
		if loc, err := locationFromZoneOffset(fields[1]); err == nil {
			t.timestamp = time.Unix(n, 0).In(loc)
			return t, nil
		}
		// Not a plausible hhmm offset, so seconds it is.
	}
	if unixDateRE.MatchString(text) {
		fields := strings.Fields(text)
		secs, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return t, err
		}
		west, err := strconv.Atoi(fields[1])
		if err != nil {
			return t, err
		}
		zone := time.FixedZone(fmt.Sprintf("%d", west), -west)
		t.timestamp = time.Unix(int64(secs), 0).In(zone)
		return t, nil
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.RFC1123Z, GitLogFormat, RFC1123ZNoComma} {
		trial, err := time.Parse(layout, text)
		if err == nil {
			t.timestamp = trial.Truncate(1 * time.Second)
			return t, nil
		}
	}
	return t, errors.New("not a valid timestamp: " + text)
}

// offset is seconds west of UTC, the sign convention of the date text.
func (date Date) offset() int {
	_, east := date.timestamp.Zone()
	return -east
}

// Before orders by instant, then by offset, so that two revisions made
// at the same second always compare the same way.
func (date Date) Before(other Date) bool {
	a, b := date.timestamp.Unix(), other.timestamp.Unix()
	if a != b {
		return a < b
	}
	return date.offset() < other.offset()
}

// String formats a Date as seconds and offset.
func (date Date) String() string {
	return fmt.Sprintf("%d %d", date.timestamp.Unix(), date.offset())
}
