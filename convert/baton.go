/*
 * Baton machinery: the status line shown while a conversion runs.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package convert

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"
	"time"
)

// Baton is the overall state of the output
type Baton struct {
	progressEnabled bool
	stream          io.Writer
	channel         chan message
	done            chan struct{}
	closer          sync.Once
	start           time.Time
	twirly          twirly
	counter         counter
	progress        progress
}

// twirly is an indefinite progress indicator
type twirly struct {
	sync.RWMutex
	lastupdate time.Time
	count      uint8
}

// counter is "N of something" progress; the caller supplies the format
type counter struct {
	sync.RWMutex
	format string
	count  uint64
}

// progress shows percentage of completion and rate
type progress struct {
	sync.RWMutex
	start      time.Time
	lastupdate time.Time
	tag        []byte
	count      uint64
	lastcount  uint64
	expected   uint64
}

type msgType uint8

const (
	// msgLOG is printed once, above the status line
	msgLOG msgType = iota
	// msgPROGRESS replaces the status line
	msgPROGRESS
	// msgSYNC is echoed back so the caller can wait for the writer
	msgSYNC
)

type message struct {
	ty  msgType
	str []byte
}

const twirlInterval = 100 * time.Millisecond // Rate-limit baton twirls
const progressInterval = 1 * time.Second     // Rate-limit progress messages

func newBaton(interactive bool, stream io.Writer) *Baton {
	me := new(Baton)
	me.start = time.Now()
	me.stream = stream
	me.progressEnabled = interactive
	me.channel = make(chan message)
	me.done = make(chan struct{})
	var tiColZero, tiClrEol []byte
	if interactive {
		tiColZero = getTerminfoString("hpa", "0")
		tiClrEol = getTerminfoString("el")
	}
	go func() {
		var lastProgress []byte
		for {
			var msg message
			select {
			case msg = <-me.channel:
			case <-me.done:
				return
			}
			switch msg.ty {
			case msgSYNC:
				me.channel <- msg
			case msgLOG:
				if me.progressEnabled {
					me.stream.Write(tiColZero)
					me.stream.Write(tiClrEol)
				}
				me.stream.Write(msg.str)
				if !bytes.HasSuffix(msg.str, []byte{'\n'}) {
					me.stream.Write([]byte{'\n'})
				}
				if me.progressEnabled && len(lastProgress) > 0 {
					me.stream.Write(lastProgress)
				}
			case msgPROGRESS:
				me.stream.Write(tiColZero)
				me.stream.Write(tiClrEol)
				if msg.str == nil && len(lastProgress) > 0 {
					// A finished meter leaves its last state on screen.
					me.stream.Write([]byte{'\n'})
				}
				me.stream.Write(msg.str)
				lastProgress = msg.str
			}
		}
	}()
	return me
}

// printLog prints a simple log message
func (baton *Baton) printLog(str []byte) {
	if baton != nil {
		baton.send(message{msgLOG, _copyb(str)})
	}
}

// printProgress refreshes the status line
func (baton *Baton) printProgress() {
	if baton != nil && baton.progressEnabled {
		var buf bytes.Buffer
		baton.render(&buf)
		baton.send(message{msgPROGRESS, buf.Bytes()})
	}
}

// send hands a message to the writer; once closed, messages are dropped.
func (baton *Baton) send(msg message) bool {
	select {
	case baton.channel <- msg:
		return true
	case <-baton.done:
		return false
	}
}

// twirl spins the baton
func (baton *Baton) twirl() {
	if baton != nil && baton.progressEnabled {
		baton.twirly.Lock()
		if time.Since(baton.twirly.lastupdate) > twirlInterval {
			baton.twirly.count = (baton.twirly.count + 1) % 4
			baton.twirly.lastupdate = time.Now()
			baton.twirly.Unlock()
			baton.printProgress()
		} else {
			baton.twirly.Unlock()
		}
	}
}

func (baton *Baton) startcounter(countfmt string, initial uint64) {
	if baton != nil && baton.progressEnabled {
		baton.counter.Lock()
		defer baton.counter.Unlock()
		baton.counter.format = countfmt
		baton.counter.count = initial
	}
}

func (baton *Baton) bumpcounter() {
	if baton != nil && baton.progressEnabled {
		baton.counter.Lock()
		if baton.counter.format != "" {
			baton.counter.count++
			baton.counter.Unlock()
			baton.twirl()
		} else {
			baton.counter.Unlock()
		}
	}
}

func (baton *Baton) endcounter() {
	if baton != nil && baton.progressEnabled {
		baton.counter.Lock()
		defer baton.counter.Unlock()
		baton.counter.format = ""
		baton.counter.count = 0
	}
}

func (baton *Baton) startProgress(tag string, expected uint64) {
	if baton != nil && baton.progressEnabled {
		baton.progress.Lock()
		defer baton.progress.Unlock()
		baton.progress.start = time.Now()
		baton.progress.lastupdate = baton.progress.start
		baton.progress.tag = []byte(tag)
		baton.progress.count = 0
		baton.progress.lastcount = 0
		baton.progress.expected = expected
	}
}

func (baton *Baton) percentProgress(ccount uint64) {
	if baton != nil && baton.progressEnabled {
		baton.progress.Lock()
		// The expected total is an estimate; do not run past it.
		if ccount > baton.progress.expected {
			baton.progress.expected = ccount
		}
		if time.Since(baton.progress.lastupdate) > progressInterval || ccount == baton.progress.expected {
			baton.progress.lastcount = baton.progress.count
			baton.progress.count = ccount
			baton.progress.lastupdate = time.Now()
			baton.progress.Unlock()
			baton.printProgress()
		} else {
			baton.progress.Unlock()
		}
	}
}

func (baton *Baton) endProgress() {
	if baton != nil && baton.progressEnabled {
		baton.progress.Lock()
		baton.progress.count = baton.progress.expected
		baton.progress.lastupdate = time.Now()
		baton.progress.Unlock()
		baton.printProgress()
		baton.progress.Lock()
		baton.progress.tag = nil
		baton.progress.count = 0
		baton.progress.expected = 0
		baton.progress.Unlock()
		baton.send(message{msgPROGRESS, nil})
	}
}

func (baton *Baton) Write(b []byte) (n int, err error) {
	if baton != nil {
		baton.printLog(b)
	}
	return len(b), nil
}

// Sync waits until everything sent so far has been written.
func (baton *Baton) Sync() {
	if baton != nil {
		if baton.send(message{msgSYNC, nil}) {
			select {
			case <-baton.channel:
			case <-baton.done:
			}
		}
	}
}

// Close stops the writer goroutine.  Closing twice is harmless.
func (baton *Baton) Close() error {
	if baton != nil {
		baton.closer.Do(func() {
			baton.Sync()
			close(baton.done)
		})
	}
	return nil
}

func (baton *Baton) render(buf io.Writer) {
	baton.counter.render(buf)
	baton.progress.render(buf)
	fmt.Fprintf(buf, " (%v)", time.Since(baton.start).Round(time.Second))
	baton.twirly.render(buf)
}

func (t *twirly) render(b io.Writer) {
	t.RLock()
	defer t.RUnlock()
	character := "-\\|/"[t.count]
	b.Write([]byte{32, character})
}

func (c *counter) render(b io.Writer) {
	c.RLock()
	defer c.RUnlock()
	if c.format != "" {
		n, _ := fmt.Fprintf(b, c.format, c.count)
		if n > 0 {
			b.Write([]byte{' '})
		}
	}
}

func scale(n float64) string {
	if n < 1000 {
		return fmt.Sprintf("%.0f", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.2fK", n/1000)
	} else if n < 1000000000 {
		return fmt.Sprintf("%.2fM", n/1000000)
	}
	return fmt.Sprintf("%.2fG", n/1000000000)
}

func (p *progress) render(b io.Writer) {
	p.RLock()
	defer p.RUnlock()
	if p.expected == 0 {
		return
	}
	frac := float64(p.count) / float64(p.expected)
	elapsed := p.lastupdate.Sub(p.start)
	rate := float64(p.count) / elapsed.Seconds()
	var ratemsg string
	if elapsed.Seconds() == 0 || math.IsInf(rate, 0) {
		ratemsg = "∞"
	} else {
		ratemsg = scale(rate)
	}
	if elapsed.Seconds() > 1 {
		elapsed = elapsed.Round(time.Second)
	}
	fmt.Fprintf(b, "%s %.2f%% %s/%s, %v @ %s/s",
		p.tag, frac*100, scale(float64(p.count)), scale(float64(p.expected)), elapsed, ratemsg)
}

func _copyb(s []byte) []byte {
	temp := make([]byte, len(s))
	copy(temp, s)
	return temp
}

func getTerminfoString(capability string, params ...string) []byte {
	out, err := exec.Command("tput", append([]string{capability}, params...)...).Output()
	if err != nil {
		return nil
	}
	return out
}
