// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package supervisor

import (
	"sync"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Notes accumulates compressed findings in the order they are appended. It
// is safe for concurrent use.
type Notes struct {
	mu       sync.Mutex
	findings []types.CompressedFinding
}

// Append adds findings in argument order.
func (n *Notes) Append(findings ...types.CompressedFinding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.findings = append(n.findings, findings...)
}

// Snapshot returns a copy of the findings so far.
func (n *Notes) Snapshot() []types.CompressedFinding {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]types.CompressedFinding(nil), n.findings...)
}

// Len returns the number of findings.
func (n *Notes) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.findings)
}
