/*
store.go - Whole-document persistence interface

PURPOSE:
  Each concern persists as one independently loadable/savable document:
  the submissions ledger, the casual-leave history, the leave-request
  collection, the warning counts, and the eligibility-cache snapshot.
  Documents are opaque bytes here; the owning service marshals its own
  JSON and is the single writer for its document.

CONTRACT:
  - Load returns (nil, nil) when the document has never been written.
    Absent is normal; it means empty.
  - A structurally invalid document surfaces as an error from the owning
    service's unmarshal, never silently treated as empty.
  - Save replaces the whole document atomically with respect to Load.

CONCURRENCY:
  The store itself does not serialize concurrent writers of the same
  document. Every owning service holds its own mutex across its
  load-mutate-save cycle; the store is only ever touched with that lock
  held. This closes the lost-update window of naive read-modify-write.

IMPLEMENTATIONS:
  - store/sqlite: production, one row per document
  - store/memory: in-memory for tests
*/
package core

import "context"

// Document names, one per concern.
const (
	DocSubmissions      = "submissions"
	DocCasualLeave      = "casual_leave"
	DocLeaveRequests    = "leave_requests"
	DocWarnings         = "warnings"
	DocEligibilityCache = "eligibility_cache"
)

// DocumentStore persists whole documents keyed by name.
type DocumentStore interface {
	// Load returns the document body, or (nil, nil) if it was never saved.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save atomically replaces the document body.
	Save(ctx context.Context, name string, body []byte) error
}
