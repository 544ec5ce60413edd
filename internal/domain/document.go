package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tag identifies one kind of field in a structural document.
type Tag string

// Tag vocabulary of a structural document. Paragraph, image and audio tags
// carry a dense 1-based index; the rest occur at most once per document.
const (
	TagTitle     Tag = "title"
	TagThumbnail Tag = "thumbnail"
	TagParagraph Tag = "paragraph"
	TagImage     Tag = "image"
	TagAudio     Tag = "audio"
	TagMusic     Tag = "music"
)

// Field is a single tagged entry of a structural document.
type Field struct {
	Tag   Tag
	Index int // 1-based for paragraph/image/audio, 0 for the rest
	Text  string
}

// Key returns the flat tag key of the field ("paragraph3", "title", ...).
func (f Field) Key() string {
	if f.Index > 0 {
		return string(f.Tag) + strconv.Itoa(f.Index)
	}
	return string(f.Tag)
}

// Document is the structural representation of a story: an ordered list of
// tagged fields produced once by the text structurer and immutable afterwards.
type Document struct {
	fields []Field
}

// Sequence holds the ordered narration/audio/image prompt lists derived from
// a document, in ascending tag-index order.
type Sequence struct {
	Paragraphs   []string
	AudioPrompts []string
	ImagePrompts []string
}

// ParseTagKey splits a flat tag key into its tag and index.
// "paragraph3" -> (TagParagraph, 3), "title" -> (TagTitle, 0).
func ParseTagKey(key string) (Tag, int, error) {
	switch key {
	case string(TagTitle):
		return TagTitle, 0, nil
	case string(TagThumbnail):
		return TagThumbnail, 0, nil
	case string(TagMusic):
		return TagMusic, 0, nil
	}

	for _, tag := range []Tag{TagParagraph, TagImage, TagAudio} {
		if !strings.HasPrefix(key, string(tag)) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(key, string(tag)))
		if err != nil || idx < 1 {
			return "", 0, fmt.Errorf("%w: tag %q has invalid index", ErrStructuringFailed, key)
		}
		return tag, idx, nil
	}

	return "", 0, fmt.Errorf("%w: unknown tag %q", ErrStructuringFailed, key)
}

// FromMap builds a document from the flat tag->text form emitted by the text
// structurer (and stored in structure.json). The map is validated against the
// tag vocabulary: every key must parse, title and paragraph1 must be present
// and each indexed family must be dense starting at 1. Physical key order is
// irrelevant.
func FromMap(raw map[string]string) (*Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrStructuringFailed)
	}

	singles := make(map[Tag]string)
	indexed := map[Tag]map[int]string{
		TagParagraph: {},
		TagImage:     {},
		TagAudio:     {},
	}

	for key, text := range raw {
		tag, idx, err := ParseTagKey(key)
		if err != nil {
			return nil, err
		}
		if idx > 0 {
			indexed[tag][idx] = text
		} else {
			singles[tag] = text
		}
	}

	if _, ok := singles[TagTitle]; !ok {
		return nil, fmt.Errorf("%w: missing title tag", ErrStructuringFailed)
	}
	if len(indexed[TagParagraph]) == 0 {
		return nil, fmt.Errorf("%w: missing paragraph1 tag", ErrStructuringFailed)
	}
	for tag, family := range indexed {
		for i := 1; i <= len(family); i++ {
			if _, ok := family[i]; !ok {
				return nil, fmt.Errorf("%w: %s indices are not contiguous (missing %s%d)",
					ErrStructuringFailed, tag, tag, i)
			}
		}
	}

	// Canonical field order: singletons first, then the indexed families in
	// ascending index order.
	doc := &Document{}
	for _, tag := range []Tag{TagTitle, TagThumbnail, TagMusic} {
		if text, ok := singles[tag]; ok {
			doc.fields = append(doc.fields, Field{Tag: tag, Text: text})
		}
	}
	for _, tag := range []Tag{TagParagraph, TagAudio, TagImage} {
		family := indexed[tag]
		for i := 1; i <= len(family); i++ {
			doc.fields = append(doc.fields, Field{Tag: tag, Index: i, Text: family[i]})
		}
	}

	return doc, nil
}

// Fields returns the document fields in canonical order.
func (d *Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// ToMap returns the flat tag->text form used on the wire and on disk.
func (d *Document) ToMap() map[string]string {
	out := make(map[string]string, len(d.fields))
	for _, f := range d.fields {
		out[f.Key()] = f.Text
	}
	return out
}

// Title returns the title text. The title tag is always present in a valid
// document, but its text may be empty.
func (d *Document) Title() string {
	text, _ := d.lookup(TagTitle)
	return text
}

// Thumbnail returns the thumbnail prompt, if the document has one.
func (d *Document) Thumbnail() (string, bool) { return d.lookup(TagThumbnail) }

// Music returns the music prompt, if the document has one.
func (d *Document) Music() (string, bool) { return d.lookup(TagMusic) }

func (d *Document) lookup(tag Tag) (string, bool) {
	for _, f := range d.fields {
		if f.Tag == tag && f.Index == 0 {
			return f.Text, true
		}
	}
	return "", false
}

// Sequence derives the story sequence: paragraphs, audio prompts and image
// prompts in ascending index order. Families need not be equal in length.
func (d *Document) Sequence() Sequence {
	byTag := map[Tag][]Field{}
	for _, f := range d.fields {
		if f.Index > 0 {
			byTag[f.Tag] = append(byTag[f.Tag], f)
		}
	}

	collect := func(tag Tag) []string {
		fields := byTag[tag]
		sort.Slice(fields, func(i, j int) bool { return fields[i].Index < fields[j].Index })
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			out = append(out, f.Text)
		}
		return out
	}

	return Sequence{
		Paragraphs:   collect(TagParagraph),
		AudioPrompts: collect(TagAudio),
		ImagePrompts: collect(TagImage),
	}
}
