package envelope

import (
	"fmt"
	"strings"

	"github.com/nikitkaralius/pollmate/internal/polls"
	"github.com/nikitkaralius/pollmate/internal/utils"
)

// summaryThreshold is the number of polls above which Render only summarizes the newest few.
const (
	summaryThreshold = 5
	summaryCount     = 3
)

// Render formats an envelope as plain text for chat front-ends.
func Render(e Envelope) string {
	switch e.Kind {
	case KindPoll:
		if e.Poll == nil {
			return ""
		}
		return renderCreated(*e.Poll)
	case KindPollResults:
		return renderResults(e.Polls)
	default:
		return e.Message
	}
}

func renderCreated(p polls.Poll) string {
	b := strings.Builder{}
	b.WriteString("✅ Poll Created Successfully!\n\n")
	b.WriteString("Question: ")
	b.WriteString(p.Question)
	b.WriteString("\n\nOptions:\n")
	for _, slot := range p.PopulatedSlots() {
		label, _ := p.Label(slot)
		b.WriteString(fmt.Sprintf("%d. %s\n", slot, label))
	}
	if p.Description != "" {
		b.WriteString("\n")
		b.WriteString(p.Description)
		b.WriteString("\n")
	}
	if p.MediaURL != "" {
		b.WriteString(fmt.Sprintf("\n📎 %s: %s\n", p.MediaKind, p.MediaURL))
	}
	b.WriteString(fmt.Sprintf("\nID: %s\n🕒 Created %s\nYour poll is now live and ready for voting!", p.ID, utils.FormatPollTime(p.CreatedAt)))
	return b.String()
}

func renderResults(ts []polls.Tally) string {
	if len(ts) == 0 {
		return "No active polls found at the moment."
	}

	b := strings.Builder{}
	plural := "s"
	if len(ts) == 1 {
		plural = ""
	}
	b.WriteString(fmt.Sprintf("📊 %d Active Poll%s Available\n\n", len(ts), plural))

	if len(ts) > summaryThreshold {
		b.WriteString("Quick Summary:\n")
		for _, t := range ts[:summaryCount] {
			b.WriteString(fmt.Sprintf("• %s - %s\n", t.Question, leaderText(t, false)))
		}
		b.WriteString("\n💡 Ask \"show results for [poll question]\" or \"show poll [ID]\" for a specific poll")
		return b.String()
	}

	for i, t := range ts {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, t.Question))
		b.WriteString(fmt.Sprintf("📅 %s • 🗳️ %d votes\n", utils.FormatPollDate(t.CreatedAt), t.TotalVotes))
		for _, o := range t.Options {
			b.WriteString(fmt.Sprintf("   %d) %s: %d (%.1f%%)\n", o.Slot, o.Text, o.Votes, o.Percentage))
		}
		b.WriteString(leaderText(t, true))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("💡 Vote: \"vote on poll %s for option [1-4]\"\n", t.ID))
		if i < len(ts)-1 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func leaderText(t polls.Tally, withShare bool) string {
	top, ok := t.Leader()
	if !ok {
		return "No votes yet"
	}
	if withShare {
		return fmt.Sprintf("🏆 Leading: %s (%d votes, %.1f%%)", top.Text, top.Votes, top.Percentage)
	}
	return fmt.Sprintf("🏆 %s (%d votes)", top.Text, top.Votes)
}
