// Package sse implements the wire layer of the analysis event stream:
// reassembling Server-Sent-Events records from arbitrarily chunked reads
// and decoding them into typed domain events.
package sse

import (
	"bytes"
	"strings"
)

// Record is one fully delimited unit of the event stream wire protocol.
type Record struct {
	Type string
	Data string
}

// Assembler reconstitutes records from a chunked byte stream. A record may
// arrive split across many reads, or one read may carry several records;
// Feed tolerates any split and never loses or duplicates a record.
//
// An Assembler is tied to one connection. Use a fresh one per attempt so a
// partial record never leaks across a reconnect.
type Assembler struct {
	carry []byte

	// in-progress record, accumulated across Feed calls
	eventType string
	data      []string
	sawField  bool
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Feed appends chunk to the carry-over buffer and returns every record
// terminated within it. A chunk containing no newline only grows the
// buffer and emits nothing.
func (a *Assembler) Feed(chunk []byte) []Record {
	a.carry = append(a.carry, chunk...)

	var records []Record
	for {
		idx := bytes.IndexByte(a.carry, '\n')
		if idx < 0 {
			break
		}
		line := string(a.carry[:idx])
		a.carry = a.carry[idx+1:]

		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			// Blank line terminates the record in progress, if any.
			if a.sawField {
				records = append(records, a.finish())
			}
			continue
		}
		a.feedLine(line)
	}

	if len(a.carry) == 0 {
		a.carry = nil
	}
	return records
}

func (a *Assembler) feedLine(line string) {
	if strings.HasPrefix(line, ":") {
		return // comment line, not a field
	}

	field, value, found := strings.Cut(line, ":")
	if !found {
		field, value = line, ""
	}
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		a.eventType = value
	case "data":
		a.data = append(a.data, value)
	}
	// Unknown fields (id, retry, ...) still mark the record as non-empty
	// so a terminator after them emits a record.
	a.sawField = true
}

func (a *Assembler) finish() Record {
	rec := Record{
		Type: a.eventType,
		Data: strings.Join(a.data, "\n"),
	}
	if rec.Type == "" {
		rec.Type = "message"
	}
	a.eventType = ""
	a.data = nil
	a.sawField = false
	return rec
}
