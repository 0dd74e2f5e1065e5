// Error classes used by the conversion engine.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a problem with what the user asked for: a bad
// sort mode, a malformed map file, a splice map that does not fit the
// history.  Nothing has been written when one of these is returned
// from the planning stages.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

func configError(msg string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(msg, args...)}
}

// CycleError reports that the effective parent graph has no
// topological order.
type CycleError struct {
	Child    string
	Parent   string
	Unsorted []string
}

func (e *CycleError) Error() string {
	if len(e.Unsorted) > 0 {
		return fmt.Sprintf("not all revisions were sorted: %s", revlist(e.Unsorted))
	}
	return fmt.Sprintf("cycle detected between %s and %s", e.Child, e.Parent)
}

// NoRepoError means a backend looked at a path and found nothing it
// can read.
type NoRepoError struct {
	Backend string
	Path    string
}

func (e *NoRepoError) Error() string {
	return fmt.Sprintf("%s does not look like a %s repository", e.Path, e.Backend)
}

// MissingToolError means a backend recognized the repository but the
// tools it needs are not available.
type MissingToolError struct {
	Backend string
	Tool    string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("cannot find required %q tool for %s", e.Tool, e.Backend)
}

// isProbeFailure tells apart "this backend does not apply" from real errors.
func isProbeFailure(err error) bool {
	var norepo *NoRepoError
	var notool *MissingToolError
	return errors.As(err, &norepo) || errors.As(err, &notool)
}

// probeErrors collects the reasons each backend declined a path.
type probeErrors []error

func (p probeErrors) String() string {
	var b strings.Builder
	for _, err := range p {
		b.WriteString(err.Error())
		b.WriteByte('\n')
	}
	return b.String()
}

// Go's panic/defer/recover is a weak primitive for catchable exceptions,
// but deep inside the copy loop it saves threading an error through
// every helper.  throw() builds the payload to hand to panic(); catch()
// runs in a deferred hook and returns only exceptions of the accepted
// class, re-panicking anything else.
//
// Classes used here:
//
// convert = the history or a backend misbehaved in the middle of a
// revision copy.  Abort the run; the revision map holds everything
// converted so far.

type exception struct {
	class   string
	message string
	err     error
}

func (e exception) Error() string {
	return e.message
}

func (e exception) Unwrap() error {
	return e.err
}

func throw(class string, msg string, args ...interface{}) *exception {
	e := new(exception)
	e.class = class
	e.message = fmt.Sprintf(msg, args...)
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			e.err = err
			break
		}
	}
	return e
}

func catch(accept string, x interface{}) *exception {
	if x == nil {
		return nil
	}
	if err, ok := x.(*exception); ok {
		if err.class == accept {
			return err
		}
	}
	panic(x)
}
