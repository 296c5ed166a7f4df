package renderer

import (
	"strings"
	"testing"

	"autoshorts/internal/domain"
)

func TestFormatSRTTime(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.25, "00:01:01,250"},
		{3661.001, "01:01:01,001"},
		{-3, "00:00:00,000"},
	}
	for _, c := range cases {
		if got := FormatSRTTime(c.in); got != c.want {
			t.Fatalf("FormatSRTTime(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildSRTProportionalSplit(t *testing.T) {
	scenes := []domain.Scene{
		{Text: "first scene"},
		{Text: "second scene"},
	}
	srt := BuildSRT(scenes, 20)

	if !strings.Contains(srt, "00:00:00,000 --> 00:00:10,000") {
		t.Fatalf("first scene window missing:\n%s", srt)
	}
	if !strings.Contains(srt, "00:00:10,000 --> 00:00:20,000") {
		t.Fatalf("second scene window missing:\n%s", srt)
	}
	if !strings.Contains(srt, "first scene") || !strings.Contains(srt, "second scene") {
		t.Fatalf("scene text missing:\n%s", srt)
	}
}

func TestBuildSRTNumbersCuesSequentially(t *testing.T) {
	scenes := []domain.Scene{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	srt := BuildSRT(scenes, 30)
	for _, prefix := range []string{"1\n", "2\n", "3\n"} {
		if !strings.Contains(srt, prefix) {
			t.Fatalf("cue %q missing:\n%s", prefix, srt)
		}
	}
}

func TestBuildSRTEmptyInputs(t *testing.T) {
	if got := BuildSRT(nil, 30); got != "" {
		t.Fatalf("got %q for no scenes", got)
	}
	if got := BuildSRT([]domain.Scene{{Text: "x"}}, 0); got != "" {
		t.Fatalf("got %q for zero duration", got)
	}
}

func TestSplitCuesWrapsLongText(t *testing.T) {
	text := strings.Repeat("word ", 40)
	cues := splitCues(text)
	if len(cues) < 2 {
		t.Fatalf("long text produced %d cues, want several", len(cues))
	}
	for _, cue := range cues {
		for _, line := range strings.Split(cue, "\n") {
			if len(line) > maxSubtitleLineChars {
				t.Fatalf("line %q exceeds %d chars", line, maxSubtitleLineChars)
			}
		}
		if n := strings.Count(cue, "\n"); n > 1 {
			t.Fatalf("cue has %d lines, max is 2:\n%s", n+1, cue)
		}
	}
}

func TestSplitCuesBlankText(t *testing.T) {
	if cues := splitCues("   "); cues != nil {
		t.Fatalf("got %v for blank text", cues)
	}
}

func TestBuildConcatListRepeatsLastFrame(t *testing.T) {
	list := buildConcatList([]string{"/tmp/a.jpg", "/tmp/b.jpg"}, 5)
	if strings.Count(list, "file '/tmp/b.jpg'") != 2 {
		t.Fatalf("last file not repeated:\n%s", list)
	}
	if !strings.Contains(list, "duration 5.000") {
		t.Fatalf("duration missing:\n%s", list)
	}
}

func TestAssColorChannelOrder(t *testing.T) {
	if got := assColor("#FFAA00"); got != "00AAFF" {
		t.Fatalf("got %q want %q", got, "00AAFF")
	}
	if got := assColor("bad"); got != "FFFFFF" {
		t.Fatalf("got %q for malformed color", got)
	}
}
