package polls

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
)

// MaxOptions is the number of option slots a poll has. Slots are numbered from 1.
const MaxOptions = 4

// MinOptions is the number of options every poll must keep populated.
const MinOptions = 2

var ErrNotFound = errors.New("poll not found")

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaPDF   MediaKind = "pdf"
	MediaDoc   MediaKind = "doc"
)

// ParseMediaKind normalizes attachment type names. "docx" and "word" are treated as doc.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "img", "photo", "picture":
		return MediaImage, true
	case "pdf":
		return MediaPDF, true
	case "doc", "docx", "word":
		return MediaDoc, true
	default:
		return "", false
	}
}

// Poll is the canonical poll record. JSON field names are the wire names the front-ends expect.
type Poll struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Option1     string    `json:"option1"`
	Option2     string    `json:"option2"`
	Option3     string    `json:"option3"`
	Option4     string    `json:"option4"`
	Description string    `json:"description"`
	MediaURL    string    `json:"mediaUrl"`
	MediaKind   MediaKind `json:"mediaKind"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Labels returns the option texts indexed by slot-1.
func (p Poll) Labels() [MaxOptions]string {
	return [MaxOptions]string{p.Option1, p.Option2, p.Option3, p.Option4}
}

// Label returns the text of a populated slot.
func (p Poll) Label(slot int) (string, bool) {
	if slot < 1 || slot > MaxOptions {
		return "", false
	}
	l := p.Labels()[slot-1]
	return l, strings.TrimSpace(l) != ""
}

// PopulatedSlots lists slots that carry option text, in order.
func (p Poll) PopulatedSlots() []int {
	labels := p.Labels()
	return lo.Filter([]int{1, 2, 3, 4}, func(slot int, _ int) bool {
		return strings.TrimSpace(labels[slot-1]) != ""
	})
}

// MatchesQuestion is the target-resolution rule: case-insensitive substring match.
func MatchesQuestion(question, fragment string) bool {
	return strings.Contains(strings.ToLower(question), strings.ToLower(strings.TrimSpace(fragment)))
}

// Draft holds the fields of a poll to be created.
type Draft struct {
	Question    string
	Options     [MaxOptions]string
	Description string
	MediaURL    string
	MediaKind   MediaKind
}

// Patch is a partial update. Nil fields are left unchanged; an empty option string clears the slot.
type Patch struct {
	Question *string
	Options  [MaxOptions]*string
	Active   *bool
}

func (p Patch) Empty() bool {
	if p.Question != nil || p.Active != nil {
		return false
	}
	return lo.EveryBy(p.Options[:], func(o *string) bool { return o == nil })
}

// Trimmed returns a copy of the patch with surrounding whitespace removed from every text field.
// Both repositories store the trimmed values.
func (p Patch) Trimmed() Patch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	out := Patch{Question: trim(p.Question), Active: p.Active}
	for i, o := range p.Options {
		out.Options[i] = trim(o)
	}
	return out
}

// Apply returns poll with the trimmed patch applied.
func (p Patch) Apply(poll Poll) Poll {
	p = p.Trimmed()
	if p.Question != nil {
		poll.Question = *p.Question
	}
	fields := []*string{&poll.Option1, &poll.Option2, &poll.Option3, &poll.Option4}
	for i, o := range p.Options {
		if o != nil {
			*fields[i] = *o
		}
	}
	if p.Active != nil {
		poll.Active = *p.Active
	}
	return poll
}

// likePattern escapes LIKE wildcards so a fragment is matched literally.
func likePattern(fragment string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(fragment)) + "%"
}
