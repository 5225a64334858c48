// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import "github.com/sage-x-project/spdm-requester/cryptoadapter"

// Algorithms is the concrete cryptoadapter.Adapter backing every Requester
// connection. It carries no state of its own -- every method is keyed by
// the algorithm id passed in, matching libspdm's stateless crypto shim.
type Algorithms struct{}

// New returns the default Adapter wired to the standard library and the
// x/crypto and decred primitives negotiated by NEGOTIATE_ALGORITHMS.
func New() cryptoadapter.Adapter {
	return &Algorithms{}
}
