package renderer

import (
	"fmt"
	"strings"

	"autoshorts/internal/domain"
)

const maxSubtitleLineChars = 40

// BuildSRT distributes the narration over the audio duration. Each scene
// gets an equal share; long scene text is split into cues of at most two
// 40-character lines spread evenly inside the scene's window.
func BuildSRT(scenes []domain.Scene, totalSeconds float64) string {
	if len(scenes) == 0 || totalSeconds <= 0 {
		return ""
	}

	perScene := totalSeconds / float64(len(scenes))
	var b strings.Builder
	cue := 1

	for i, scene := range scenes {
		sceneStart := float64(i) * perScene
		chunks := splitCues(scene.Text)
		if len(chunks) == 0 {
			continue
		}
		perCue := perScene / float64(len(chunks))
		for j, chunk := range chunks {
			start := sceneStart + float64(j)*perCue
			end := start + perCue
			fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", cue, FormatSRTTime(start), FormatSRTTime(end), chunk)
			cue++
		}
	}
	return b.String()
}

// splitCues breaks text into word-wrapped cues of up to two lines.
func splitCues(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var line strings.Builder
	for _, w := range words {
		if line.Len() > 0 && line.Len()+1+len(w) > maxSubtitleLineChars {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(w)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	cues := make([]string, 0, (len(lines)+1)/2)
	for i := 0; i < len(lines); i += 2 {
		if i+1 < len(lines) {
			cues = append(cues, lines[i]+"\n"+lines[i+1])
		} else {
			cues = append(cues, lines[i])
		}
	}
	return cues
}

// FormatSRTTime renders seconds as the SRT HH:MM:SS,mmm timestamp.
func FormatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	millis %= 3600000
	m := millis / 60000
	millis %= 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
