// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imulog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Writer emits rows in the data log format. Values use the shortest representation
// that parses back to the same float64.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
	rows   int
}

// NewWriter wraps w without taking ownership of it.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Create truncates or creates path and returns a Writer that closes it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// WriteHeader writes the t_ms,ax,ay,az line.
func (w *Writer) WriteHeader() error {
	_, err := w.w.WriteString(strings.Join(Header[:], ",") + "\n")
	return err
}

func (w *Writer) WriteRow(r Row) error {
	b := w.buf[:0]
	for i, v := range [4]float64{r.T, r.Ax, r.Ay, r.Az} {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	b = append(b, '\n')
	w.buf = b

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns how many data rows have been written.
func (w *Writer) Rows() int { return w.rows }

// Close flushes buffered output and closes the file created by Create.
func (w *Writer) Close() error {
	err := w.w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	return err
}
