package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/pitchstream/pkg/audio"
)

// ramp returns n samples with value i/n at index i.
func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) / float32(n)
	}
	return out
}

func TestResample_OutputLength(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		inRate  int
		outRate int
		want    int
	}{
		{"48k to 16k", 3000, 48000, 16000, 1000},
		{"44.1k to 16k", 2048, 44100, 16000, 743},
		{"48k to 16k uneven block", 1024, 48000, 16000, 341},
		{"22.05k to 16k", 512, 22050, 16000, 371},
		{"8k to 16k upsample", 100, 8000, 16000, 200},
		{"empty", 0, 48000, 16000, 0},
		{"44.1k exact multiple", 441, 44100, 16000, 160},
		{"shorter than ratio", 2, 48000, 16000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.Resample(ramp(tt.n), tt.inRate, tt.outRate)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
			// floor(N / (in/out)) == floor(N*out/in)
			if floor := tt.n * tt.outRate / tt.inRate; floor != len(got) {
				t.Errorf("len = %d, want floor(N/ratio) = %d", len(got), floor)
			}
		})
	}
}

func TestResample_EmptyInputIsNonNil(t *testing.T) {
	got := audio.Resample(nil, 48000, 16000)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestResample_Interpolation(t *testing.T) {
	// ratio = 1.5: t = 0, 1.5, 3.0 → x0, mid(x1,x2), x3
	in := []float32{0, 1, 2, 3, 4}
	got := audio.Resample(in, 24000, 16000)
	want := []float32{0, 1.5, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample_IntegerRatioPicksSourceSamples(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	got := audio.Resample(in, 48000, 16000)
	want := []float32{0.1, 0.4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample_UpsampleClampsLastIndex(t *testing.T) {
	// The last output positions interpolate towards x[N-1], never past it.
	in := []float32{1, 2}
	got := audio.Resample(in, 8000, 16000)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[3] != 2 {
		t.Errorf("last sample = %f, want 2", got[3])
	}
	if got[1] != 1.5 {
		t.Errorf("sample 1 = %f, want 1.5", got[1])
	}
}

func TestResample_SameRateCopies(t *testing.T) {
	in := []float32{1, 2, 3}
	got := audio.Resample(in, 16000, 16000)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	got[0] = 99
	if in[0] != 1 {
		t.Error("same-rate resample aliases its input")
	}
}

func TestResample_InvalidRatePassThrough(t *testing.T) {
	in := []float32{1, 2, 3}
	if got := audio.Resample(in, 0, 16000); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestResampler_UsesBlockRate(t *testing.T) {
	r := audio.Resampler{Target: audio.TargetSampleRate}
	got := r.Resample(audio.Block{Samples: ramp(3000), SampleRate: 48000})
	if len(got) != 1000 {
		t.Errorf("len = %d, want 1000", len(got))
	}
	// Second call exercises the already-warned path.
	got = r.Resample(audio.Block{Samples: ramp(441), SampleRate: 44100})
	if len(got) != 160 {
		t.Errorf("len = %d, want 160", len(got))
	}
}

func TestInt16ToFloat32(t *testing.T) {
	got := audio.Int16ToFloat32([]int16{0, 16384, -32768})
	want := []float32{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSamplesPerChunk(t *testing.T) {
	if got := audio.SamplesPerChunk(audio.TargetSampleRate, audio.FrameDuration); got != 800 {
		t.Errorf("SamplesPerChunk = %d, want 800", got)
	}
	if got := audio.SamplesPerChunk(44100, audio.FrameDuration); got != 2205 {
		t.Errorf("SamplesPerChunk(44100) = %d, want 2205", got)
	}
}

func TestBlock_CloneDoesNotAlias(t *testing.T) {
	b := audio.Block{Samples: []float32{1, 2}, SampleRate: 48000}
	c := b.Clone()
	c.Samples[0] = 5
	if b.Samples[0] != 1 {
		t.Error("Clone aliases original samples")
	}
}

func TestBlock_Duration(t *testing.T) {
	b := audio.Block{Samples: make([]float32, 4800), SampleRate: 48000}
	if got := b.Duration(); got.Milliseconds() != 100 {
		t.Errorf("Duration = %v, want 100ms", got)
	}
}
