// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	ianaindex "golang.org/x/text/encoding/ianaindex"
)

// recoder turns metadata in the source's character encoding into UTF-8.
type recoder struct {
	name    string
	decoder *encoding.Decoder
}

// newRecoder looks up a codec by IANA name.  An empty name or any
// spelling of UTF-8 yields a recoder that only repairs invalid bytes.
func newRecoder(name string) (*recoder, error) {
	r := &recoder{name: name}
	switch strings.ToLower(strings.Replace(name, "-", "", -1)) {
	case "", "utf8":
		return r, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, configError("can't set up codec %s", name)
	}
	r.decoder = enc.NewDecoder()
	return r, nil
}

// recode converts s, replacing anything undecodable.
func (r *recoder) recode(s string) string {
	if r == nil || r.decoder == nil {
		if utf8.ValidString(s) {
			return s
		}
		return strings.ToValidUTF8(s, "�")
	}
	out, err := r.decoder.String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "�")
	}
	return out
}

// recodeCommit applies recode to the human-readable parts of a commit.
func (r *recoder) recodeCommit(c *Commit) {
	c.Author = r.recode(c.Author)
	c.Desc = r.recode(c.Desc)
	c.Branch = r.recode(c.Branch)
}
