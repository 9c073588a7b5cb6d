package silence

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"splicer/internal/config"
	"splicer/internal/marks"
	"splicer/internal/media/ffmpeg"
	"splicer/internal/services"
)

const detectLog = `[silencedetect @ 0x5583] silence_start: 10
[silencedetect @ 0x5583] silence_end: 20 | silence_duration: 10
size=N/A time=00:01:40.00 bitrate=N/A speed= 900x
[silencedetect @ 0x5583] silence_start: 61.25
[silencedetect @ 0x5583] silence_end: 64.5 | silence_duration: 3.25
[silencedetect @ 0x5583] silence_start: 98
`

type scriptedRunner struct {
	output []byte
	err    error
	calls  []ffmpeg.Command
}

func (r *scriptedRunner) Run(_ context.Context, cmd ffmpeg.Command) ([]byte, error) {
	r.calls = append(r.calls, cmd)
	return r.output, r.err
}

func (r *scriptedRunner) Pipe(context.Context, ...ffmpeg.Command) error {
	return errors.New("unexpected pipe")
}

func TestParseGaps(t *testing.T) {
	gaps := ParseGaps([]byte(detectLog))
	want := []Gap{{10, 20}, {61.25, 64.5}}
	if len(gaps) != len(want) {
		t.Fatalf("gaps = %+v", gaps)
	}
	for i := range want {
		if gaps[i] != want[i] {
			t.Fatalf("gap %d = %+v, want %+v", i, gaps[i], want[i])
		}
	}
}

func TestApply(t *testing.T) {
	cases := []struct {
		name  string
		marks string
		gaps  []Gap
		want  string
		cuts  int
	}{
		{
			name:  "gap inside kept span",
			marks: "i0\no100\n",
			gaps:  []Gap{{10, 20}},
			want:  "i0\no10.500000\ni19.500000\no100\n",
			cuts:  1,
		},
		{
			name:  "gap inside dropped span",
			marks: "i0\no5\ni30\no40\n",
			gaps:  []Gap{{10, 20}},
			want:  "i0\no5\ni30\no40\n",
		},
		{
			name:  "gap straddling a mark",
			marks: "i12\no40\n",
			gaps:  []Gap{{10, 20}},
			want:  "i12\no40\n",
		},
		{
			name:  "other lines pass through",
			marks: "# note\ni0\n\no30\n",
			gaps:  []Gap{{5, 10}},
			want:  "# note\ni0\n\no5.500000\ni9.500000\no30\n",
			cuts:  1,
		},
		{
			name:  "fast forward spans are left alone",
			marks: "i0\nf10\nn50\no60\n",
			gaps:  []Gap{{20, 30}, {52, 55}},
			want:  "i0\nf10\nn50\no52.500000\ni54.500000\no60\n",
			cuts:  1,
		},
		{
			name:  "gap after the last mark",
			marks: "i0\n",
			gaps:  []Gap{{3, 9}},
			want:  "i0\no3.500000\ni8.500000\n",
			cuts:  1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			cuts, err := Apply(marks.NewReader(strings.NewReader(tc.marks)), tc.gaps, DefaultPadding, &out)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if out.String() != tc.want {
				t.Fatalf("output = %q, want %q", out.String(), tc.want)
			}
			if cuts != tc.cuts {
				t.Fatalf("cuts = %d, want %d", cuts, tc.cuts)
			}
		})
	}
}

func TestRefine(t *testing.T) {
	runner := &scriptedRunner{output: []byte(detectLog)}
	engine := config.FromDocuments("[silence]\npadding=1\nthreshold=-30dB\n")
	var out bytes.Buffer
	err := New(Options{Engine: engine, Runner: runner}).Refine(context.Background(),
		[]string{"host.wav", "guest.wav"}, strings.NewReader("i0\no100\n"), &out)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	want := "i0\no11.000000\ni19.000000\no62.250000\ni63.500000\no100\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if len(runner.calls) != 1 || !strings.Contains(runner.calls[0].String(), "amix=2,dynaudnorm,silencedetect=-30dB") {
		t.Fatalf("unexpected invocation: %+v", runner.calls)
	}
}

func TestRefineErrors(t *testing.T) {
	r := New(Options{Engine: config.Defaults(), Runner: &scriptedRunner{}})
	err := r.Refine(context.Background(), nil, strings.NewReader(""), &bytes.Buffer{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("no inputs = %v, want validation error", err)
	}

	r = New(Options{Engine: config.Defaults(), Runner: &scriptedRunner{err: errors.New("exit status 1")}})
	var out bytes.Buffer
	err = r.Refine(context.Background(), []string{"a.wav"}, strings.NewReader("i0\n"), &out)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("tool failure = %v, want external tool error", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be written on failure, got %q", out.String())
	}
}
