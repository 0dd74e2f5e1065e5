// Logging, status output and run-wide settings.
//
// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	terminal "golang.org/x/crypto/ssh/terminal"
)

/*
 * The main point of this design is to make adding and removing log
 * classes simple enough that it can be done ad-hoc for specific
 * debugging missions.  All you need to do to create a new class is
 * add a constant to the iota initializer and a corresponding entry to
 * LogTags, then you can use the constant in logit() and logEnable().
 */

// Log classes.
const (
	LogSHOUT    uint = 1 << iota // Errors and urgent messages
	LogWARN                      // Exceptional condition, probably not bug
	LogBATON                     // Progress-meter milestones
	LogTOPOLOGY                  // Graph scanning and scheduling (coarse-grained)
	LogEXTRACT                   // Per-revision copy details (fine-grained)
	LogSPLICE                    // Splice map parsing and merging
	LogTAGFIX                    // Tag and bookmark remapping
	LogMAPS                      // Author, branch and file map handling
)

// LogTags maps user-visible names to log classes.
var LogTags = map[string]uint{
	"shout":    LogSHOUT,
	"warn":     LogWARN,
	"baton":    LogBATON,
	"topology": LogTOPOLOGY,
	"extract":  LogEXTRACT,
	"splice":   LogSPLICE,
	"tagfix":   LogTAGFIX,
	"maps":     LogMAPS,
}

// ParseLogMask turns a list of class names into a mask.
func ParseLogMask(names []string) (uint, error) {
	var mask uint
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if name == "all" {
			mask = ^uint(0)
			continue
		}
		bit, ok := LogTags[name]
		if !ok {
			known := make([]string, 0, len(LogTags))
			for k := range LogTags {
				known = append(known, k)
			}
			sort.Strings(known)
			return 0, configError("no such log class as %q (known: %s)", name, strings.Join(known, ", "))
		}
		mask |= bit
	}
	return mask, nil
}

// Control carries the output machinery of one conversion.  It replaces
// what would otherwise be process-wide state, so two conversions in one
// process do not share settings.
type Control struct {
	logmask uint
	quiet   bool
	logger  *log.Logger
	baton   *Baton
}

// leaderFormatter renders log entries the way the status output looks.
type leaderFormatter struct {
	leader string
}

func (f leaderFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(f.leader)
	b.WriteString(": ")
	if entry.Level <= log.WarnLevel {
		b.WriteString(entry.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// NewControl sets up output to out.  The progress meter is shown only if
// progress is set and out is a terminal.
func NewControl(out io.Writer, progress bool) *Control {
	ctl := new(Control)
	ctl.logmask = (LogWARN << 1) - 1
	interactive := false
	if f, ok := out.(*os.File); ok && progress {
		interactive = terminal.IsTerminal(int(f.Fd()))
	}
	ctl.baton = newBaton(interactive, out)
	ctl.logger = log.New()
	ctl.logger.Out = ctl.baton
	ctl.logger.Formatter = leaderFormatter{leader: "repoconvert"}
	ctl.logger.Level = log.DebugLevel
	return ctl
}

// quietControl discards everything; used when the caller supplies none.
// It has no baton, so it starts no writer goroutine.
func quietControl() *Control {
	ctl := new(Control)
	ctl.quiet = true
	ctl.logger = log.New()
	ctl.logger.Out = ioutil.Discard
	ctl.logger.Formatter = leaderFormatter{leader: "repoconvert"}
	return ctl
}

// SetLogMask replaces the set of enabled log classes.
func (ctl *Control) SetLogMask(mask uint) {
	ctl.logmask = mask
}

// SetQuiet suppresses status messages.
func (ctl *Control) SetQuiet(quiet bool) {
	ctl.quiet = quiet
}

// logEnable is a hook to set up log-message filtering.
func (ctl *Control) logEnable(logbits uint) bool {
	return (ctl.logmask & logbits) != 0
}

// logit writes a diagnostic; callers gate it with logEnable.
func (ctl *Control) logit(msg string, args ...interface{}) {
	ctl.logger.Debugf(msg, args...)
}

// croak reports a condition the user should know about but that does
// not stop the run.
func (ctl *Control) croak(msg string, args ...interface{}) {
	if ctl.logEnable(LogWARN) {
		ctl.logger.Warnf(msg, args...)
	}
}

// respond is for progress narration, the "scanning source..." kind.
func (ctl *Control) respond(msg string, args ...interface{}) {
	if !ctl.quiet {
		ctl.baton.printLog([]byte(fmt.Sprintf(msg, args...) + "\n"))
	}
}

// Close flushes pending output and stops the status line.
func (ctl *Control) Close() error {
	return ctl.baton.Close()
}
