package domain

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// ScheduleConfig describes when new episodes of a series are generated.
// Days are lowercase English weekday names, TimeUTC is "HH:MM".
type ScheduleConfig struct {
	Frequency string   `json:"frequency"`
	Days      []string `json:"days"`
	TimeUTC   string   `json:"time_utc"`
	Timezone  string   `json:"timezone"`
}

// DueAt reports whether the schedule matches the given UTC instant with
// minute granularity.
func (s ScheduleConfig) DueAt(now time.Time) bool {
	day := strings.ToLower(now.UTC().Weekday().String())
	match := false
	for _, d := range s.Days {
		if strings.ToLower(strings.TrimSpace(d)) == day {
			match = true
			break
		}
	}
	if !match {
		return false
	}
	at := s.TimeUTC
	if at == "" {
		at = "14:00"
	}
	return now.UTC().Format("15:04") == at
}

// PublishChannels flags the platforms a series publishes to by default.
type PublishChannels struct {
	YouTube   bool `json:"youtube"`
	TikTok    bool `json:"tiktok"`
	Instagram bool `json:"instagram"`
}

// Platforms returns the enabled channels as platform identifiers.
func (c PublishChannels) Platforms() []Platform {
	var out []Platform
	if c.YouTube {
		out = append(out, PlatformYouTube)
	}
	if c.TikTok {
		out = append(out, PlatformTikTok)
	}
	if c.Instagram {
		out = append(out, PlatformInstagram)
	}
	return out
}

// Series is the recurring-content configuration owning many videos. The
// pipeline reads it and only ever mutates the episode counter.
type Series struct {
	ID          string
	UserID      string
	Title       string
	Description string

	Topic                 string
	PromptTemplate        string
	Language              string
	Tone                  string
	TargetDurationSeconds int

	Schedule ScheduleConfig
	IsActive bool

	Channels    PublishChannels
	VisualStyle VisualStyle

	VoiceID     *string
	TTSProvider string

	TotalEpisodes int

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NormalizedLanguage parses the configured language code and returns its
// canonical BCP 47 form, defaulting to English when unset or invalid.
func (s *Series) NormalizedLanguage() string {
	tag, err := language.Parse(strings.TrimSpace(s.Language))
	if err != nil || tag == language.Und {
		return "en"
	}
	return tag.String()
}
