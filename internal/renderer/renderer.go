package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoshorts/internal/domain"
)

// Output frame geometry for vertical short-form video.
const (
	frameWidth  = 1080
	frameHeight = 1920
	frameRate   = 30
)

// Options configures the ffmpeg-backed renderer.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Renderer composes narration audio, scene imagery and burned-in subtitles
// into a single vertical mp4.
type Renderer struct {
	ffmpeg  string
	ffprobe string
	client  *http.Client
	logger  zerolog.Logger
}

func New(opts Options) *Renderer {
	ffmpeg := opts.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	ffprobe := opts.FFprobePath
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Renderer{ffmpeg: ffmpeg, ffprobe: ffprobe, client: client, logger: opts.Logger}
}

// Input is everything Render needs for one video. Scenes whose MediaURL is
// nil get a solid-color placeholder frame.
type Input struct {
	WorkDir   string
	AudioPath string
	Scenes    []domain.Scene
	Style     domain.VisualStyle
}

// Result points at the rendered file inside the work dir.
type Result struct {
	VideoPath       string
	DurationSeconds float64
}

func (r *Renderer) Render(ctx context.Context, in Input) (*Result, error) {
	if len(in.Scenes) == 0 {
		return nil, fmt.Errorf("render: no scenes")
	}

	total, err := r.ProbeDuration(ctx, in.AudioPath)
	if err != nil {
		return nil, err
	}

	imagePaths := make([]string, 0, len(in.Scenes))
	for i, scene := range in.Scenes {
		path := filepath.Join(in.WorkDir, fmt.Sprintf("scene_%02d.jpg", i))
		if scene.MediaURL != nil {
			if err := r.downloadImage(ctx, *scene.MediaURL, path); err != nil {
				r.logger.Warn().Err(err).Int("scene", i).Msg("scene image download failed, using placeholder")
				if err := r.writePlaceholder(ctx, path, i); err != nil {
					return nil, err
				}
			}
		} else {
			if err := r.writePlaceholder(ctx, path, i); err != nil {
				return nil, err
			}
		}
		imagePaths = append(imagePaths, path)
	}

	srtPath := filepath.Join(in.WorkDir, "subtitles.srt")
	if err := os.WriteFile(srtPath, []byte(BuildSRT(in.Scenes, total)), 0o644); err != nil {
		return nil, fmt.Errorf("render: write subtitles: %w", err)
	}

	concatPath := filepath.Join(in.WorkDir, "concat.txt")
	perScene := total / float64(len(in.Scenes))
	if err := os.WriteFile(concatPath, []byte(buildConcatList(imagePaths, perScene)), 0o644); err != nil {
		return nil, fmt.Errorf("render: write concat list: %w", err)
	}

	outPath := filepath.Join(in.WorkDir, "final.mp4")
	if err := r.compose(ctx, concatPath, in.AudioPath, srtPath, outPath, in.Style); err != nil {
		return nil, err
	}

	return &Result{VideoPath: outPath, DurationSeconds: total}, nil
}

// ProbeDuration reads the media duration in seconds via ffprobe.
func (r *Renderer) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("render: ffprobe %s: %w", path, err)
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("render: parse ffprobe output: %w", err)
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("render: invalid duration %q for %s", probe.Format.Duration, path)
	}
	return dur, nil
}

func (r *Renderer) compose(ctx context.Context, concatPath, audioPath, srtPath, outPath string, style domain.VisualStyle) error {
	forceStyle := fmt.Sprintf(
		"FontName=%s,FontSize=%d,PrimaryColour=&H%s&,Alignment=2,MarginV=80",
		style.Font, style.FontSize, assColor(style.FontColor),
	)
	cmd := exec.CommandContext(ctx, r.ffmpeg,
		"-y",
		"-f", "concat", "-safe", "0", "-i", concatPath,
		"-i", audioPath,
		"-vf", fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,subtitles=%s:force_style='%s'",
			frameWidth, frameHeight, frameWidth, frameHeight, srtPath, forceStyle,
		),
		"-c:v", "libx264", "-preset", "medium", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-r", strconv.Itoa(frameRate),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-shortest",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(out)
		if len(tail) > 1024 {
			tail = tail[len(tail)-1024:]
		}
		return fmt.Errorf("render: ffmpeg compose: %w: %s", err, tail)
	}
	return nil
}

// writePlaceholder renders a single dark frame so a missing stock image
// never blocks a render.
func (r *Renderer) writePlaceholder(ctx context.Context, path string, index int) error {
	colors := []string{"0x1a1a2e", "0x16213e", "0x0f3460", "0x533483"}
	cmd := exec.CommandContext(ctx, r.ffmpeg,
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:d=1", colors[index%len(colors)], frameWidth, frameHeight),
		"-frames:v", "1",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("render: placeholder frame: %w: %s", err, out)
	}
	return nil
}

func (r *Renderer) downloadImage(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// buildConcatList writes an ffmpeg concat demuxer script holding each
// scene image for its share of the narration.
func buildConcatList(imagePaths []string, perSceneSeconds float64) string {
	var b strings.Builder
	for _, p := range imagePaths {
		fmt.Fprintf(&b, "file '%s'\n", p)
		fmt.Fprintf(&b, "duration %.3f\n", perSceneSeconds)
	}
	// concat demuxer requires the last file repeated without a duration
	if len(imagePaths) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", imagePaths[len(imagePaths)-1])
	}
	return b.String()
}

// assColor converts "#RRGGBB" into the ASS &HBBGGRR& channel order.
func assColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "FFFFFF"
	}
	return strings.ToUpper(hex[4:6] + hex[2:4] + hex[0:2])
}
