package polls

// OptionTally is the vote count of one populated slot.
type OptionTally struct {
	Slot       int     `json:"slot"`
	Text       string  `json:"text"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Tally is a poll together with its per-option counts.
type Tally struct {
	Poll
	Options    []OptionTally `json:"options"`
	TotalVotes int           `json:"totalVotes"`
}

// Count tallies the selected slots of a poll's responses. Only populated slots are counted, so
// votes left on a slot that no longer has text are ignored. Percentages are 0 when nobody voted.
func Count(p Poll, selected []int) Tally {
	counts := make(map[int]int, MaxOptions)
	for _, s := range selected {
		counts[s]++
	}

	t := Tally{Poll: p, Options: make([]OptionTally, 0, MaxOptions)}
	for _, slot := range p.PopulatedSlots() {
		label, _ := p.Label(slot)
		t.Options = append(t.Options, OptionTally{Slot: slot, Text: label, Votes: counts[slot]})
		t.TotalVotes += counts[slot]
	}
	if t.TotalVotes == 0 {
		return t
	}
	for i := range t.Options {
		t.Options[i].Percentage = float64(t.Options[i].Votes) / float64(t.TotalVotes) * 100
	}
	return t
}

// Leader returns the option with the most votes, or false when there are no votes.
// Ties go to the lower slot.
func (t Tally) Leader() (OptionTally, bool) {
	var best OptionTally
	found := false
	for _, o := range t.Options {
		if o.Votes > 0 && (!found || o.Votes > best.Votes) {
			best, found = o, true
		}
	}
	return best, found
}
