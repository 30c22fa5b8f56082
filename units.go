// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import "strconv"

// Bytes is a count of payload bytes, kept as its own type (as the
// teacher's bytes.go does for the same reason) so sizes can't be
// mixed up with sequence numbers or addresses at the call site.
type Bytes int

func (b Bytes) String() string {
	return strconv.Itoa(int(b))
}
