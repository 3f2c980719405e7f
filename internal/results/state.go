package results

// State is everything the server persists per game for the sync protocol:
// the confirmed document and the bounded history of applied op ids used to
// deduplicate resubmitted batches.
type State struct {
	Doc        *Document `json:"doc"`
	AppliedIDs []string  `json:"applied_ids"`
}

func NewState() *State {
	return &State{Doc: NewDocument()}
}

func (s *State) Seen(opID string) bool {
	for _, id := range s.AppliedIDs {
		if id == opID {
			return true
		}
	}
	return false
}

// Record remembers an applied op id, evicting the oldest entries beyond the
// history window.
func (s *State) Record(opID string, window int) {
	s.AppliedIDs = append(s.AppliedIDs, opID)
	if window > 0 && len(s.AppliedIDs) > window {
		s.AppliedIDs = append(s.AppliedIDs[:0], s.AppliedIDs[len(s.AppliedIDs)-window:]...)
	}
}

// ClearHistory drops the dedup window, used when a reset wipes the document.
func (s *State) ClearHistory() {
	s.AppliedIDs = nil
}
