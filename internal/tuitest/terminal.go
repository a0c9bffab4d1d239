package tuitest

import (
	"bytes"
	"io"
)

// Bubble Tea probes the terminal on startup (cursor position, foreground and
// background color) and blocks until something answers. A PTY has no real
// terminal behind it, so the responder watches the output stream for those
// probes and writes canned replies back.
type queryReply struct {
	query []byte
	reply []byte
}

var terminalQueries = []queryReply{
	{[]byte("\x1b[6n"), []byte("\x1b[1;1R")},
	{[]byte("\x1b]10;?\x07"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{[]byte("\x1b]10;?\x1b\\"), []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{[]byte("\x1b]11;?\x07"), []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{[]byte("\x1b]11;?\x1b\\"), []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

type terminalResponder struct {
	w   io.Writer
	buf []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, buf: make([]byte, 0, 128)}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.buf = append(tr.buf, chunk...)
	tr.scan()
	// Keep only a short tail; a probe can straddle two reads but never 64 bytes.
	if len(tr.buf) > 256 {
		tr.buf = tr.buf[len(tr.buf)-64:]
	}
}

func (tr *terminalResponder) scan() {
	for {
		answered := false
		for _, q := range terminalQueries {
			if tr.consume(q.query, q.reply) {
				answered = true
			}
		}
		if !answered {
			return
		}
	}
}

func (tr *terminalResponder) consume(query, reply []byte) bool {
	idx := bytes.Index(tr.buf, query)
	if idx < 0 {
		return false
	}
	tr.buf = tr.buf[idx+len(query):]
	_, _ = tr.w.Write(reply)
	return true
}
