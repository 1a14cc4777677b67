package export

import (
	"strings"
	"testing"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

func TestResolveClips(t *testing.T) {
	video := clips.VideoInfo{FilePath: "/videos/talk.mp4"}
	list := []clips.Clip{
		{ID: 1, Name: "Hook", Start: 1.5, End: 4, Caption: "line one\nline two"},
		{ID: 2, Name: "", Start: 10, End: 12},
		{ID: 3, Name: "Broken", Start: 5, End: 5},
	}

	resolved, unresolved := ResolveClips(video, list)
	if len(resolved) != 2 {
		t.Fatalf("resolved = %d, want 2", len(resolved))
	}
	if resolved[0].StartMs != 1500 || resolved[0].EndMs != 4000 || resolved[0].MediaPath != "/videos/talk.mp4" {
		t.Errorf("resolved[0] = %+v", resolved[0])
	}
	if resolved[0].Caption != "line one line two" {
		t.Errorf("caption = %q", resolved[0].Caption)
	}
	if resolved[1].ClipName != "Clip 2" {
		t.Errorf("empty name fallback = %q", resolved[1].ClipName)
	}
	if len(unresolved) != 1 || unresolved[0] != "Broken" {
		t.Errorf("unresolved = %v", unresolved)
	}

	edl := GenerateEDL(resolved, "Talk", 30)
	if !strings.Contains(edl, "* COMMENT:  line one line two") {
		t.Errorf("missing caption comment: %q", edl)
	}
}

func TestClipFileName(t *testing.T) {
	tests := []struct {
		name string
		id   int
		want string
	}{
		{"Best moment", 3, "Best_moment_3.mp4"},
		{"a/b:c", 1, "a_b_c_1.mp4"},
		{"", 7, "clip_7.mp4"},
	}
	for _, tt := range tests {
		if got := ClipFileName(tt.name, tt.id); got != tt.want {
			t.Errorf("ClipFileName(%q, %d) = %q, want %q", tt.name, tt.id, got, tt.want)
		}
	}
}

func TestProjectName(t *testing.T) {
	if got := ProjectName("  "); got != "heimdex_clips" {
		t.Errorf("ProjectName(blank) = %q", got)
	}
	if got := ProjectName("My <Talk>"); got != "My _Talk_" {
		t.Errorf("ProjectName() = %q", got)
	}
}
