package note

import (
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
)

// tagPattern matches a hashtag token inside note text.
var tagPattern = regexp.MustCompile(`#[a-zA-Z0-9\-_]+`)

// tagNamePattern matches a complete, already-normalized tag name.
var tagNamePattern = regexp.MustCompile(`^#[a-z0-9\-_]+$`)

// Palette is the fixed set of display colors a new tag may receive.
var Palette = []string{
	"#34495e", "#8e44ad", "#27ae60", "#3498db", "#c0392b", "#f1c40f",
}

// ColorPicker chooses a display color for a tag.
type ColorPicker func() string

// RandomColor picks uniformly from Palette.
func RandomColor() string {
	return Palette[rand.IntN(len(Palette))]
}

// ExtractTags returns the distinct hashtags in text, ASCII-lowercased and
// sorted. Returns an empty (non-nil) slice when there are none.
func ExtractTags(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range tagPattern.FindAllString(text, -1) {
		seen[strings.ToLower(m)] = struct{}{}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// NormalizeTag trims and lowercases a tag name and adds the leading '#'
// when it was omitted (HTTP paths and CLI args carry bare names).
func NormalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != "" && !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

// ValidTagName reports whether name is a normalized tag name.
func ValidTagName(name string) bool {
	return tagNamePattern.MatchString(name)
}

// BuildTags constructs one Tag per entry in n.Tags, each carrying a single
// Active map stamped with the note's timestamp. A color is rolled for every
// tag, including ones that already exist; the store's insert-or-ignore keeps
// the first color a tag ever received.
func BuildTags(n *Note, pick ColorPicker) []Tag {
	if pick == nil {
		pick = RandomColor
	}
	tags := make([]Tag, 0, len(n.Tags))
	for _, name := range n.Tags {
		tags = append(tags, Tag{
			Name:  name,
			Color: pick(),
			Maps: []TagMap{{
				NoteID:    n.ID,
				Status:    StatusActive,
				Timestamp: n.Timestamp,
			}},
		})
	}
	return tags
}
