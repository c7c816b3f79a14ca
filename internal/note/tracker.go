package note

// Tracker keeps at most one sounding note. A new note-on always replaces the
// current one (last-note priority).
type Tracker struct {
	current  Note
	sounding bool
}

// NoteOn starts p regardless of what was sounding before.
func (t *Tracker) NoteOn(p Pitch, v Velocity, now float64) {
	t.current = Note{Pitch: p, Velocity: v, Onset: now}
	t.sounding = true
}

// NoteOff ends the sounding note only if its pitch matches p. It reports
// whether a note was ended; a note-off for a replaced note is ignored.
func (t *Tracker) NoteOff(p Pitch, now float64) bool {
	if !t.sounding || t.current.Pitch != p {
		return false
	}
	t.sounding = false
	return true
}

// Current returns the sounding note, if any.
func (t *Tracker) Current() (Note, bool) {
	return t.current, t.sounding
}

// Rebase shifts the onset by -offset when the clock restarts from zero.
func (t *Tracker) Rebase(offset float64) {
	t.current.Onset -= offset
}

// Reset drops any sounding note.
func (t *Tracker) Reset() {
	t.current = Note{}
	t.sounding = false
}
