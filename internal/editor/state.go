package editor

// State is a snapshot of the editing session.
type State struct {
	// ActiveSource is the source being edited, nil when none.
	ActiveSource *Source
	// Duration of the active source in seconds, 0 until known.
	Duration float64
	// Playhead is the playback position in seconds.
	Playhead float64
	// RangeStart and RangeEnd bound the segment to export.
	RangeStart float64
	RangeEnd   float64
	// IsPlaying mirrors the player.
	IsPlaying bool
	// IsBusy is true exactly while an engine call is outstanding.
	IsBusy bool
	// Progress is the last reported export progress in [0, 1].
	Progress float64
	// LastError is the message of the last failed action, "" when none.
	LastError string
	// UploadHistory lists uploaded sources in insertion order, unique by name.
	UploadHistory []Source
	// ClipBatch lists exported clips in insertion order.
	ClipBatch []Clip
}

// HasSource returns true if a source is active.
func (s State) HasSource() bool {
	return s.ActiveSource != nil
}

// clone returns a copy that shares no slices or pointers with s.
// Clip byte slices are shared since clips are immutable.
func (s State) clone() State {
	out := s
	if s.ActiveSource != nil {
		src := *s.ActiveSource
		out.ActiveSource = &src
	}
	out.UploadHistory = append([]Source(nil), s.UploadHistory...)
	out.ClipBatch = append([]Clip(nil), s.ClipBatch...)
	return out
}

// initialState returns the empty session, keeping the given upload history.
func initialState(history []Source) State {
	return State{
		UploadHistory: history,
		ClipBatch:     make([]Clip, 0),
	}
}
