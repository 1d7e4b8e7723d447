// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"bufio"
	"io"
	"strconv"

	"github.com/AleutianAI/kequality/services/kingdom"
)

// AnswerWriter writes one answer per line.
//
// Call Flush when done; output is buffered.
type AnswerWriter struct {
	w   *bufio.Writer
	buf []byte
}

// NewAnswerWriter wraps w in a buffered answer writer.
func NewAnswerWriter(w io.Writer) *AnswerWriter {
	return &AnswerWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteAnswer writes a bare answer line.
func (a *AnswerWriter) WriteAnswer(answer int) error {
	a.buf = strconv.AppendInt(a.buf[:0], int64(answer), 10)
	a.buf = append(a.buf, '\n')
	_, err := a.w.Write(a.buf)
	return err
}

// WriteVerdict writes an answer followed by its explanation, tab separated:
//
//	answer  node  traveled  excluded  rejection
//
// node, traveled and excluded are "-" when the query was rejected.
func (a *AnswerWriter) WriteVerdict(v kingdom.Verdict) error {
	b := strconv.AppendInt(a.buf[:0], int64(v.Answer), 10)
	if v.Meeting != nil {
		b = append(b, '\t')
		b = strconv.AppendInt(b, int64(v.Meeting.Node), 10)
		b = append(b, '\t')
		b = strconv.AppendInt(b, int64(v.Meeting.Traveled), 10)
		b = append(b, '\t')
		if len(v.Meeting.Excluded) == 0 {
			b = append(b, '-')
		}
		for i, e := range v.Meeting.Excluded {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendInt(b, int64(e), 10)
		}
	} else {
		b = append(b, "\t-\t-\t-"...)
	}
	b = append(b, '\t')
	b = append(b, v.Rejection.String()...)
	b = append(b, '\n')
	a.buf = b

	_, err := a.w.Write(b)
	return err
}

// Flush writes any buffered answers to the underlying writer.
func (a *AnswerWriter) Flush() error {
	return a.w.Flush()
}
