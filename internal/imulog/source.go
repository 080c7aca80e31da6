// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imulog

import (
	"fmt"
	"io"
	"os"
)

// Cursor yields rows in file order. Next returns io.EOF after the last row.
type Cursor interface {
	Next() (Row, error)
	Close() error
}

// Source can be opened repeatedly; every cursor starts from the first row.
type Source interface {
	Open() (Cursor, error)
}

// FileSource replays a data log from disk.
type FileSource struct {
	Path string
}

// Open opens the file and returns a Reader positioned at its start.
func (s FileSource) Open() (Cursor, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open data log %s: %w", s.Path, err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// SliceSource replays rows held in memory.
type SliceSource []Row

func (s SliceSource) Open() (Cursor, error) {
	return &sliceCursor{rows: s}, nil
}

type sliceCursor struct {
	rows []Row
	pos  int
}

func (c *sliceCursor) Next() (Row, error) {
	if c.pos >= len(c.rows) {
		return Row{}, io.EOF
	}
	r := c.rows[c.pos]
	c.pos++
	return r, nil
}

func (c *sliceCursor) Close() error { return nil }

// ForEach opens src and calls fn for every row until the end or the first error.
func ForEach(src Source, fn func(Row) error) error {
	cur, err := src.Open()
	if err != nil {
		return err
	}
	defer cur.Close()

	for {
		row, err := cur.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
