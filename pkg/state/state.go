// Package state persists export progress so an interrupted run can resume
// from the last saved page offset. Progress is keyed by (country, time
// slice) and written after every page, so a kill at any point loses at
// most the page in flight — which a resumed run re-fetches idempotently.
package state

import (
	"context"
	"fmt"
	"time"
)

// CursorState is the saved progress of one (country, slice) page walk.
type CursorState struct {
	// NextSkip is the offset the next page fetch starts at. Always counted
	// in items received from the server, never rows written, so a resumed
	// walk stays aligned with server pagination.
	NextSkip int `json:"next_skip"`

	// WrittenInRun counts rows written during the run that saved this entry.
	WrittenInRun int `json:"written_in_run"`

	// Done marks the walk finished; done entries are skipped on resume.
	Done bool `json:"done"`

	// ClientFilterActive records that the walk downgraded to client-side
	// date filtering, so a resumed walk starts degraded as well.
	ClientFilterActive bool `json:"client_filter_active"`

	// UpdatedAt is the UTC timestamp of the last save.
	UpdatedAt string `json:"updated_at"`
}

// Signature freezes the run parameters a state file belongs to. A resume
// attempt whose signature differs from the stored one is a configuration
// error: silently continuing with mismatched parameters would interleave
// rows from incompatible exports.
type Signature struct {
	Countries      []string `json:"countries"`
	UpdatedFrom    string   `json:"updated_from"`
	DateFilterMode string   `json:"date_filter_mode"`
	SliceBy        string   `json:"slice_by"`
	SliceDateField string   `json:"slice_date_field"`
	SliceStart     string   `json:"slice_start"`
	SliceEnd       string   `json:"slice_end"`
}

// Equal compares signatures field by field.
func (s Signature) Equal(other Signature) bool {
	if len(s.Countries) != len(other.Countries) {
		return false
	}
	for i := range s.Countries {
		if s.Countries[i] != other.Countries[i] {
			return false
		}
	}
	return s.UpdatedFrom == other.UpdatedFrom &&
		s.DateFilterMode == other.DateFilterMode &&
		s.SliceBy == other.SliceBy &&
		s.SliceDateField == other.SliceDateField &&
		s.SliceStart == other.SliceStart &&
		s.SliceEnd == other.SliceEnd
}

// State is the full persisted document.
type State struct {
	Signature *Signature             `json:"signature,omitempty"`
	Countries map[string]CursorState `json:"countries"`
}

// NewState returns an empty state document.
func NewState() *State {
	return &State{Countries: make(map[string]CursorState)}
}

// Key builds the entry key for one (country, slice) pair.
func Key(country, sliceLabel string) string {
	return country + "|" + sliceLabel
}

// Entry returns the saved cursor for a (country, slice) pair.
// Absence means the walk starts fresh at offset 0.
func (s *State) Entry(country, sliceLabel string) (CursorState, bool) {
	entry, ok := s.Countries[Key(country, sliceLabel)]
	return entry, ok
}

// SetEntry records progress for a (country, slice) pair.
func (s *State) SetEntry(country, sliceLabel string, entry CursorState) {
	if s.Countries == nil {
		s.Countries = make(map[string]CursorState)
	}
	entry.UpdatedAt = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	s.Countries[Key(country, sliceLabel)] = entry
}

// VerifySignature checks a loaded state against the current run parameters.
// A state without a signature (fresh file) accepts any; a mismatch is fatal.
func (s *State) VerifySignature(current Signature) error {
	if s.Signature == nil {
		return nil
	}
	if !s.Signature.Equal(current) {
		return fmt.Errorf("state was created for different export parameters; reset the state or use another state location")
	}
	return nil
}

// Store is a durable state backend.
type Store interface {
	// Load reads the persisted state. A missing document yields an empty state.
	Load(ctx context.Context) (*State, error)

	// Save persists the state atomically with respect to crashes: a failed
	// save never corrupts the previously valid document.
	Save(ctx context.Context, s *State) error

	// Reset discards any persisted state.
	Reset(ctx context.Context) error
}
