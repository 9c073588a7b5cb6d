package ffprobe

import (
	"math"
	"testing"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "r_frame_rate": "60000/1001"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "tags": {"title": " host "}},
    {"index": 2, "codec_type": "audio", "codec_name": "aac", "tags": {"TITLE": "guest"}},
    {"index": 3, "codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"filename": "cap.mkv", "nb_streams": 4, "duration": "123.45"}
}`

func TestParse(t *testing.T) {
	result, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 3 {
		t.Fatalf("expected 3 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if got := result.Streams[1].Title(); got != "host" {
		t.Fatalf("title = %q", got)
	}
	if got := result.Streams[2].Title(); got != "guest" {
		t.Fatalf("title with upper-case tag = %q", got)
	}
	if got := result.Streams[3].Title(); got != "" {
		t.Fatalf("untitled stream title = %q", got)
	}
	if rate := result.FrameRate(); math.Abs(rate-59.94) > 0.01 {
		t.Fatalf("frame rate = %v", rate)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	for _, raw := range []string{"", "0/0", "x/1", "30/y"} {
		if got := (Stream{RFrameRate: raw}).FrameRate(); got != 0 {
			t.Fatalf("FrameRate(%q) = %v, want 0", raw, got)
		}
	}
	if got := (Stream{RFrameRate: "25"}).FrameRate(); got != 25 {
		t.Fatalf("FrameRate(25) = %v", got)
	}
	if (Result{}).FrameRate() != 0 {
		t.Fatal("expected 0 frame rate without video")
	}
}
