package progress_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"squash/internal/progress"
)

const statLine = "frame= 1200 fps= 48.5 q=28.0 size=    2048kB time=00:00:50.00 bitrate= 335.5kbits/s speed=1.94x"

func TestParseLineExtractsAllMarkers(t *testing.T) {
	s := progress.ParseLine(statLine)
	if !s.HasElapsed() || s.Elapsed != 50*time.Second {
		t.Fatalf("elapsed = %v (present=%v), want 50s", s.Elapsed, s.HasElapsed())
	}
	if !s.HasSpeed() || s.Speed != 1.94 {
		t.Fatalf("speed = %v, want 1.94", s.Speed)
	}
	if !s.HasFPS() || s.FPS != 48.5 {
		t.Fatalf("fps = %v, want 48.5", s.FPS)
	}
	if s.Bitrate != "335.5kbits/s" {
		t.Fatalf("bitrate = %q", s.Bitrate)
	}
	if s.Size != "2048kB" {
		t.Fatalf("size = %q", s.Size)
	}
}

func TestParseLineOmitsMissingMarkers(t *testing.T) {
	s := progress.ParseLine("frame=  10 fps=0.0 q=0.0 size=N/A time=N/A bitrate=N/A speed=N/A")
	if s.HasElapsed() || s.HasSpeed() || s.HasBitrate() || s.HasSize() {
		t.Fatalf("expected only fps to be present, got %+v", s)
	}
	if !s.HasFPS() {
		t.Fatal("expected fps marker")
	}
	if !progress.ParseLine("Input #0, mov,mp4 from 'in.mp4':").Empty() {
		t.Fatal("banner line should carry no markers")
	}
}

func TestParseLineNegativeTimeIsZero(t *testing.T) {
	s := progress.ParseLine("size=0kB time=-00:00:00.04 bitrate=N/A speed=N/A")
	if !s.HasElapsed() || s.Elapsed != 0 {
		t.Fatalf("elapsed = %v, want 0", s.Elapsed)
	}
}

func TestParseLineRejectsOverflowingClock(t *testing.T) {
	for _, line := range []string{
		"time=99999999999:00:00.00 speed=1.0x",
		"time=2562047:47:16.85 speed=1.0x",
		"time=99999999999999999999:00:00.00 speed=1.0x",
	} {
		s := progress.ParseLine(line)
		if s.HasElapsed() {
			t.Fatalf("%q: elapsed = %v, want no marker", line, s.Elapsed)
		}
		if !s.HasSpeed() {
			t.Fatalf("%q: speed marker should survive", line)
		}
	}
	s := progress.ParseLine("time=2562046:59:59.99")
	if !s.HasElapsed() || s.Elapsed <= 0 {
		t.Fatalf("largest representable clock: elapsed = %v", s.Elapsed)
	}
}

func TestParseKeepsLatestAcrossRecords(t *testing.T) {
	text := "time=00:00:10.00 speed=1.0x\rtime=00:00:20.00 speed=2.0x\r"
	s := progress.Parse(text)
	if s.Elapsed != 20*time.Second || s.Speed != 2 {
		t.Fatalf("got %+v, want the last record", s)
	}
}

func TestPercentClamped(t *testing.T) {
	cases := []struct {
		elapsed, total time.Duration
		want           float64
	}{
		{50 * time.Second, 100 * time.Second, 50},
		{150 * time.Second, 100 * time.Second, 100},
		{10 * time.Second, 0, 0},
		{-5 * time.Second, 100 * time.Second, 0},
	}
	for _, tc := range cases {
		if got := progress.Percent(tc.elapsed, tc.total); got != tc.want {
			t.Fatalf("Percent(%v, %v) = %v, want %v", tc.elapsed, tc.total, got, tc.want)
		}
	}
	if got := progress.Clamp(math.NaN()); got != 0 {
		t.Fatalf("Clamp(NaN) = %v, want 0", got)
	}
}

func TestETA(t *testing.T) {
	if _, ok := progress.ETA(10*time.Second, 0); ok {
		t.Fatal("eta must be undefined at zero progress")
	}
	eta, ok := progress.ETA(30*time.Second, 25)
	if !ok || eta != 90*time.Second {
		t.Fatalf("ETA = %v ok=%v, want 90s", eta, ok)
	}
	eta, ok = progress.ETA(30*time.Second, 100)
	if !ok || eta != 0 {
		t.Fatalf("ETA at completion = %v ok=%v, want 0", eta, ok)
	}
}

func TestParserHandlesSplitRecords(t *testing.T) {
	p := progress.NewParser(5)
	first, second := statLine[:40], statLine[40:]

	if _, updated := p.Feed([]byte(first)); updated {
		t.Fatal("partial record must not produce an update")
	}
	s, updated := p.Feed([]byte(second + "\r"))
	if !updated {
		t.Fatal("expected update once the record completes")
	}
	if s.Elapsed != 50*time.Second || s.Speed != 1.94 {
		t.Fatalf("merged sample wrong: %+v", s)
	}
}

func TestParserFlushConsumesTrailingRecord(t *testing.T) {
	p := progress.NewParser(5)
	p.Feed([]byte("time=00:01:00.00 speed=3.0x"))
	s, updated := p.Flush()
	if !updated || s.Elapsed != time.Minute {
		t.Fatalf("flush = %+v updated=%v", s, updated)
	}
}

func TestParserBoundsPartialAndTail(t *testing.T) {
	p := progress.NewParser(3)
	for i := 0; i < 10; i++ {
		p.Feed([]byte("error line " + strings.Repeat("x", i) + "\n"))
	}
	lines := strings.Split(p.Tail(), "\n")
	if len(lines) != 3 {
		t.Fatalf("tail kept %d lines, want 3", len(lines))
	}
	if !strings.HasSuffix(lines[2], strings.Repeat("x", 9)) {
		t.Fatalf("tail should end with latest line, got %q", lines[2])
	}

	huge := strings.Repeat("a", 64*1024)
	p.Feed([]byte(huge))
	s, _ := p.Feed([]byte(" time=00:00:05.00 speed=1.0x\n"))
	if s.Elapsed != 5*time.Second {
		t.Fatalf("marker after oversized partial lost: %+v", s)
	}
	if len(p.Tail()) > 3*600 {
		t.Fatalf("tail grew unbounded: %d bytes", len(p.Tail()))
	}
}

func TestParserProgressLinesStayOutOfTail(t *testing.T) {
	p := progress.NewParser(5)
	p.Feed([]byte(statLine + "\r" + "Conversion failed!\n"))
	if got := p.Tail(); got != "Conversion failed!" {
		t.Fatalf("tail = %q", got)
	}
}
