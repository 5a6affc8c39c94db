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

package mounts

import "sort"

// Set holds the entries of one mount table, keyed by each entry's canonical
// line. Sets are rebuilt wholesale from a fresh parse, never mutated.
type Set map[string]Mount

// NewSet builds a Set from parsed entries. Duplicate entries collapse.
func NewSet(list []Mount) Set {
	set := make(Set, len(list))
	for _, m := range list {
		set[m.String()] = m
	}
	return set
}

// Diff returns the entries present in current but not previous (added) and
// the entries present in previous but not current (removed). Both slices
// are sorted by canonical line so output is deterministic. Both are empty
// when the sets are equal.
func Diff(previous, current Set) (added, removed []Mount) {
	for key, m := range current {
		if _, ok := previous[key]; !ok {
			added = append(added, m)
		}
	}
	for key, m := range previous {
		if _, ok := current[key]; !ok {
			removed = append(removed, m)
		}
	}
	sort.Slice(added, func(i, j int) bool {
		return added[i].String() < added[j].String()
	})
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].String() < removed[j].String()
	})
	return added, removed
}
