// MountWatch Core
// Copyright (c) 2026 The MountWatch Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MountWatch Core.
//
// MountWatch Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MountWatch Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MountWatch Core.  If not, see <http://www.gnu.org/licenses/>.

// Package mounts parses the Linux mount table format used by /proc/mounts
// and fstab-style files, and computes set differences between two tables.
// Everything here is pure: no file access, no state.
package mounts

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Mount is a single mount table entry. Two entries are equal only when all
// six fields match, so the same mount point can appear more than once with
// different sources or options.
type Mount struct {
	Spec       string
	MountPoint string
	FSType     string
	Options    []string
	DumpFreq   uint32
	FsckPassNo uint32
}

// String returns the entry in its canonical single-line table form. For any
// entry produced by the parser the result is unique: fields never contain
// whitespace and options never contain commas, so the line round-trips.
func (m Mount) String() string {
	return fmt.Sprintf("%s %s %s %s %d %d",
		m.Spec, m.MountPoint, m.FSType, strings.Join(m.Options, ","), m.DumpFreq, m.FsckPassNo)
}

// ParseError reports a mount table line that does not have the expected
// six-field shape. Line holds the raw offending line.
type ParseError struct {
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse mount table line: %q", e.Line)
}

// ParseLine parses one mount table line. The second return value is false
// for lines the table format ignores: blank lines and comments starting
// with '#', after leading whitespace. Any other line must contain exactly
// six whitespace-separated fields, with the options field split on ',' and
// the final two fields holding non-negative integers.
func ParseLine(line string) (Mount, bool, error) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Mount{}, false, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 6 {
		return Mount{}, false, &ParseError{Line: line}
	}

	dumpFreq, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return Mount{}, false, &ParseError{Line: line}
	}
	fsckPassNo, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return Mount{}, false, &ParseError{Line: line}
	}

	return Mount{
		Spec:       fields[0],
		MountPoint: fields[1],
		FSType:     fields[2],
		Options:    strings.Split(fields[3], ","),
		DumpFreq:   uint32(dumpFreq),
		FsckPassNo: uint32(fsckPassNo),
	}, true, nil
}

// ParseTable parses a whole mount table. Parsing stops at the first
// malformed line and returns its *ParseError with no partial results.
func ParseTable(text string) ([]Mount, error) {
	var list []Mount
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		mount, ok, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		list = append(list, mount)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mount table: %w", err)
	}
	return list, nil
}
