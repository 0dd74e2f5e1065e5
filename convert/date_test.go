// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	var tests = []struct {
		text   string
		expect string
	}{
		{"1300000000 -3600", "1300000000 -3600"},
		{"1300000000 +0100", "1300000000 -3600"},
		{"1300000000-0230", "1300000000 9000"},
		{"1300000000 0", "1300000000 0"},
		{"0 0", "0 0"},
		{"2011-03-13T07:06:40Z", "1300000000 0"},
		{"Sun, 13 Mar 2011 08:06:40 +0100", "1300000000 -3600"},
		{"Sun Mar 13 08:06:40 2011 +0100", "1300000000 -3600"},
	}
	for _, item := range tests {
		d, err := parseDate(item.text)
		if err != nil {
			t.Errorf("%q: unexpected error %v", item.text, err)
			continue
		}
		assertEqual(t, d.String(), item.expect)
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, text := range []string{"", "yesterday", "12:00"} {
		if _, err := parseDate(text); err == nil {
			t.Errorf("%q: expected an error", text)
		}
	}
}

func TestDateBefore(t *testing.T) {
	a, _ := parseDate("100 0")
	b, _ := parseDate("200 0")
	c, _ := parseDate("100 3600")
	assertTrue(t, a.Before(b))
	assertBool(t, b.Before(a), false)
	// Same instant, ordered by offset so that ties are still total.
	assertTrue(t, a.Before(c))
	assertBool(t, a.Before(a), false)
}

func TestLocationFromZoneOffset(t *testing.T) {
	loc, err := locationFromZoneOffset("-0230")
	assertNoError(t, err)
	_, east := time.Unix(0, 0).In(loc).Zone()
	assertIntEqual(t, east, -9000)
	_, err = locationFromZoneOffset("+1500")
	assertErrorContains(t, err, "dubious zone offset")
	_, err = locationFromZoneOffset("0100x")
	assertErrorContains(t, err, "ill-formed")
}
