package ingest

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"strings"

	"brainbolt/internal/domain"
)

// DefaultTranscriptLanguages are tried in order before falling back to the
// first caption track listed.
var DefaultTranscriptLanguages = []string{"en", "hi"}

// ErrNoTranscript is returned when a video exposes no caption tracks.
var ErrNoTranscript = errors.New("no transcript available")

type TranscriptConfig struct {
	// BaseURL is the watch page host, https://www.youtube.com unless testing.
	BaseURL   string
	Languages []string
}

// Transcript loads the caption track of a YouTube video as a single page-0
// text page. It reads the caption list from the watch page and fetches the
// timed-text document it points at.
type Transcript struct {
	web *Web
	cfg TranscriptConfig
}

func NewTranscript(web *Web, cfg TranscriptConfig) *Transcript {
	if web == nil {
		web = NewWeb(WebConfig{})
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.youtube.com"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultTranscriptLanguages
	}
	return &Transcript{web: web, cfg: cfg}
}

// IsYouTubeURL reports whether link points at a YouTube video.
func IsYouTubeURL(link string) bool {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	return host == "youtube.com" || host == "youtu.be"
}

// VideoID extracts the video id from watch, short, embed and youtu.be links.
func VideoID(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return "", fmt.Errorf("no video id in %q", link)
	}
	return parts[len(parts)-1], nil
}

func (t *Transcript) Load(ctx context.Context, link string) (domain.Bag, error) {
	id, err := VideoID(link)
	if err != nil {
		return domain.Bag{}, err
	}
	page, _, err := t.web.get(ctx, t.cfg.BaseURL+"/watch?v="+url.QueryEscape(id))
	if err != nil {
		return domain.Bag{}, fmt.Errorf("fetch watch page: %w", err)
	}
	tracks, err := captionTracks(page)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("video %s: %w", id, err)
	}
	track := pickTrack(tracks, t.cfg.Languages)
	doc, _, err := t.web.get(ctx, track.BaseURL)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("fetch captions: %w", err)
	}
	text, err := timedText(doc)
	if err != nil {
		return domain.Bag{}, fmt.Errorf("parse captions: %w", err)
	}
	if text == "" {
		return domain.Bag{}, fmt.Errorf("video %s: %w", id, ErrNoTranscript)
	}
	return domain.Bag{Source: link, TextPages: []domain.TextPage{{Text: text, Page: 0}}}, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
}

// captionTracks decodes the captionTracks array embedded in the watch page's
// player response.
func captionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	i := strings.Index(string(page), marker)
	if i < 0 {
		return nil, ErrNoTranscript
	}
	var tracks []captionTrack
	dec := json.NewDecoder(strings.NewReader(string(page[i+len(marker):])))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, ErrNoTranscript
	}
	return tracks, nil
}

func pickTrack(tracks []captionTrack, languages []string) captionTrack {
	for _, lang := range languages {
		for _, tr := range tracks {
			if tr.LanguageCode == lang {
				return tr
			}
		}
	}
	return tracks[0]
}

// timedText joins the caption cues of a timed-text document. Both the
// <text> and the <p> cue layouts are accepted.
func timedText(doc []byte) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(doc)))
	var cues []string
	var cur strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "text" || el.Name.Local == "p" {
				depth++
			}
		case xml.EndElement:
			if (el.Name.Local == "text" || el.Name.Local == "p") && depth > 0 {
				depth--
				if depth == 0 {
					if cue := strings.Join(strings.Fields(html.UnescapeString(cur.String())), " "); cue != "" {
						cues = append(cues, cue)
					}
					cur.Reset()
				}
			}
		case xml.CharData:
			if depth > 0 {
				cur.Write(el)
			}
		}
	}
	return strings.Join(cues, " "), nil
}
