package batch

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/remote"
)

// Job is one remote processing unit: an uploaded file or a produced clip.
type Job struct {
	Label  string        `json:"label"`
	Source remote.Source `json:"-"`
	// FilePath and InputPath mirror Source for JSON callers.
	FilePath  string `json:"file_path,omitempty"`
	InputPath string `json:"input_path,omitempty"`
}

func (j Job) source() remote.Source {
	if j.Source.FilePath != "" || j.Source.InputPath != "" {
		return j.Source
	}
	return remote.Source{FilePath: j.FilePath, InputPath: j.InputPath}
}

type ResizeOptions struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mode   string `json:"mode,omitempty"`
}

type TitleOptions struct {
	Text     string `json:"text"`
	Position string `json:"position,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
}

type TranslationOptions struct {
	TargetLanguage string `json:"target_language"`
}

type MirrorOptions struct {
	Direction string `json:"direction,omitempty"`
}

type SourceChannelOptions struct {
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}

// Options are shared by every job of a remote batch. A nil feature bundle
// disables the feature.
type Options struct {
	Layout        string                `json:"layout,omitempty"`
	CaptionStyle  string                `json:"caption_style,omitempty"`
	Language      string                `json:"language,omitempty"`
	Resize        *ResizeOptions        `json:"resize,omitempty"`
	Title         *TitleOptions         `json:"title,omitempty"`
	Translation   *TranslationOptions   `json:"translation,omitempty"`
	Mirror        *MirrorOptions        `json:"mirror,omitempty"`
	SourceChannel *SourceChannelOptions `json:"source_channel,omitempty"`
	// BulkTitles overrides the title per job, keyed by the job's index in
	// the whole batch.
	BulkTitles []string `json:"bulk_titles,omitempty"`
	// HistorySource tags the resulting history entries.
	HistorySource string `json:"history_source,omitempty"`
}

// BuildPayload flattens opts for the job at index into form fields. Every
// optional feature is sent as an enable_X flag plus its fields.
func BuildPayload(opts Options, index int) remote.Payload {
	p := remote.Payload{}
	setIf(p, "layout", opts.Layout)
	setIf(p, "caption_style", opts.CaptionStyle)
	setIf(p, "language", opts.Language)

	p["enable_resize"] = strconv.FormatBool(opts.Resize != nil)
	if r := opts.Resize; r != nil {
		p["resize_width"] = strconv.Itoa(r.Width)
		p["resize_height"] = strconv.Itoa(r.Height)
		setIf(p, "resize_mode", r.Mode)
	}

	title := opts.Title
	if override := bulkTitle(opts.BulkTitles, index); override != "" {
		t := TitleOptions{Text: override}
		if title != nil {
			t.Position = title.Position
			t.FontSize = title.FontSize
		}
		title = &t
	}
	p["enable_title"] = strconv.FormatBool(title != nil)
	if title != nil {
		p["title_text"] = title.Text
		setIf(p, "title_position", title.Position)
		if title.FontSize > 0 {
			p["title_font_size"] = strconv.Itoa(title.FontSize)
		}
	}

	p["enable_translation"] = strconv.FormatBool(opts.Translation != nil)
	if t := opts.Translation; t != nil {
		p["translation_target"] = t.TargetLanguage
	}

	p["enable_mirror"] = strconv.FormatBool(opts.Mirror != nil)
	if m := opts.Mirror; m != nil {
		dir := m.Direction
		if dir == "" {
			dir = "horizontal"
		}
		p["mirror_direction"] = dir
	}

	p["enable_source_channel"] = strconv.FormatBool(opts.SourceChannel != nil)
	if sc := opts.SourceChannel; sc != nil {
		p["source_channel_name"] = sc.Name
		setIf(p, "source_channel_position", sc.Position)
	}
	return p
}

func bulkTitle(titles []string, index int) string {
	if index < 0 || index >= len(titles) {
		return ""
	}
	return strings.TrimSpace(titles[index])
}

func setIf(p remote.Payload, key, value string) {
	if value != "" {
		p[key] = value
	}
}

// NormalizeHost rewrites rawURL to the scheme and host of base. The service
// reports URLs with whatever host it believes it has, which is often not
// reachable from here. Relative URLs are resolved against base.
func NormalizeHost(rawURL, base string) string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host == "" {
		return b.ResolveReference(u).String()
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String()
}
