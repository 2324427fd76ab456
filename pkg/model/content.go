package model

import (
	"time"
)

// ContentType identifies the media kind of a narration asset.
type ContentType string

// Content types.
const (
	ContentTypeAudio       ContentType = "audio"
	ContentTypeVideo       ContentType = "video"
	ContentTypeText        ContentType = "text"
	ContentTypeInteractive ContentType = "interactive"
)

// Content represents one language/media-tagged narration asset attached to a
// POI. One entry per (language, type) pair is expected but not enforced.
type Content struct {
	ID          string            `json:"id"`
	Language    Language          `json:"language"`
	Type        ContentType       `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	MediaURL    string            `json:"media_url"`
	Duration    time.Duration     `json:"duration"`
	Active      bool              `json:"active"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ResolveContent finds the narration asset for the requested language and
// type. It prefers an active exact (language, type) match, then an active
// entry in the fallback language for the same type. Inactive entries never
// resolve, in either branch. The second return is false when nothing matched.
func (p *POI) ResolveContent(lang Language, typ ContentType, fallback Language) (*Content, bool) {
	for i := range p.Contents {
		c := &p.Contents[i]
		if c.Active && c.Language == lang && c.Type == typ {
			return c, true
		}
	}
	if fallback == "" || fallback == lang {
		return nil, false
	}
	for i := range p.Contents {
		c := &p.Contents[i]
		if c.Active && c.Language == fallback && c.Type == typ {
			return c, true
		}
	}
	return nil, false
}
