package ffmpeg

import (
	"context"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type scriptedRunner struct {
	output []byte
	err    error
	calls  []Command
}

func (r *scriptedRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	return r.output, r.err
}

func (r *scriptedRunner) Pipe(_ context.Context, cmds ...Command) error {
	r.calls = append(r.calls, cmds...)
	return r.err
}

const loudnormSummary = `[Parsed_loudnorm_0 @ 0x55]
Input Integrated:    -23.5 LUFS
Input True Peak:      -4.1 dBTP
Input LRA:             6.0 LU
`

func TestMeasureLevel(t *testing.T) {
	runner := &scriptedRunner{output: []byte(loudnormSummary)}
	gain, err := MeasureLevel(context.Background(), runner, "ffmpeg", "in.flac", -18)
	if err != nil {
		t.Fatalf("MeasureLevel returned error: %v", err)
	}
	if math.Abs(gain-5.5) > 1e-9 {
		t.Fatalf("gain = %g, want 5.5", gain)
	}
	want := []string{"-i", "in.flac", "-af", "loudnorm=print_format=summary", "-f", "wav", "-y", "/dev/null"}
	if len(runner.calls) != 1 || !reflect.DeepEqual(runner.calls[0].Args, want) {
		t.Fatalf("unexpected invocation: %+v", runner.calls)
	}
}

func TestMeasureLevelSilenceAndGarbage(t *testing.T) {
	cases := map[string]string{
		"silence": "Input Integrated:     -inf LUFS\n",
		"garbage": "Input Integrated:     nope\n",
		"missing": "nothing useful\n",
	}
	for name, output := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &scriptedRunner{output: []byte(output)}
			gain, _ := MeasureLevel(context.Background(), runner, "ffmpeg", "in.flac", -18)
			if gain != 0 {
				t.Fatalf("gain = %g, want 0", gain)
			}
		})
	}
}

func TestMeasureLevelReportsToolFailure(t *testing.T) {
	runner := &scriptedRunner{output: []byte(loudnormSummary), err: errors.New("exit status 1")}
	gain, err := MeasureLevel(context.Background(), runner, "ffmpeg", "in.flac", -18)
	if err == nil {
		t.Fatal("expected tool failure to be reported")
	}
	if math.Abs(gain-5.5) > 1e-9 {
		t.Fatalf("gain = %g, want measurement despite failure", gain)
	}
}

func TestFilterArgs(t *testing.T) {
	got := FilterArgs("a.flac", "alimiter", "flac", "b.flac")
	want := []string{"-i", "a.flac", "-filter_complex", "[0:a]alimiter[aud]", "-map", "[aud]", "-c:a", "flac", "-y", "b.flac"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterArgs = %v", got)
	}
}

func TestExtractArgs(t *testing.T) {
	got := strings.Join(ExtractArgs("cap.mkv", 3, "aresample=async=1", "flac", "host-raw.flac"), " ")
	want := "-nostdin -copyts -i cap.mkv -map 0:3 -af aresample=async=1 -c:a flac -ar 48000 -ac 2 -y host-raw.flac"
	if got != want {
		t.Fatalf("ExtractArgs = %q", got)
	}
	if strings.Contains(strings.Join(ExtractArgs("cap.mkv", 1, "", "flac", "x"), " "), "-af") {
		t.Fatal("empty filter should be omitted")
	}
}

func TestResampleArgs(t *testing.T) {
	got := strings.Join(ResampleArgs("host-raw.flac", "pcm_s16le", "host-raw.wav"), " ")
	want := "-nostdin -i host-raw.flac -c:a pcm_s16le -ar 48000 -ac 2 -y host-raw.wav"
	if got != want {
		t.Fatalf("ResampleArgs = %q", got)
	}
}

func TestSilenceArgs(t *testing.T) {
	got := SilenceArgs([]string{"a.flac", "b.flac"}, "-25dB")
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "-i a.flac -i b.flac -filter_complex [0:a][1:a]amix=2,dynaudnorm,silencedetect=-25dB[aud]") {
		t.Fatalf("SilenceArgs = %q", joined)
	}
}

func TestPCMFormat(t *testing.T) {
	if PCMFormat("noiserepellent") != "f32le" || PCMFormat("rnn") != "s16le" {
		t.Fatal("unexpected PCM formats")
	}
}

func TestExecRunnerPipe(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "out.txt")
	err := ExecRunner{}.Pipe(context.Background(),
		Command{Name: "sh", Args: []string{"-c", "printf 'hello\\n'"}},
		Command{Name: "sh", Args: []string{"-c", "tr a-z A-Z > " + out}},
	)
	if err != nil {
		t.Fatalf("Pipe returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "HELLO\n" {
		t.Fatalf("pipe output = %q", data)
	}
}

func TestExecRunnerPipeReaderExitsEarly(t *testing.T) {
	for _, name := range []string{"sh", "yes"} {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available", name)
		}
	}
	done := make(chan error, 1)
	go func() {
		done <- ExecRunner{}.Pipe(context.Background(),
			Command{Name: "yes"},
			Command{Name: "sh", Args: []string{"-c", "head -c 10 >/dev/null; echo bad profile >&2; exit 3"}},
		)
	}()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "bad profile") {
			t.Fatalf("expected reader failure to be reported, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Pipe did not return after the reader exited")
	}
}

func TestExecRunnerRunIncludesOutputOnFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, err := ExecRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}
