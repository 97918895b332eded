package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FakeFFmpeg describes a shell script standing in for ffmpeg. The script
// prints a duration header and two progress lines on stderr, sleeps for
// Delay seconds, then writes OutputSize bytes to its last argument unless
// that argument is the null device, and exits with ExitCode. Invoked with
// -version or -encoders it answers like a build with libx264 and aac.
type FakeFFmpeg struct {
	DurationSeconds int
	OutputSize      int64
	ExitCode        int
	Delay           float64
	// Stderr is printed before exiting with a non-zero code.
	Stderr string
	// FailOn makes any run whose arguments contain it exit 1 straight away.
	FailOn string
}

// Install writes the script into dir and returns its path.
func (f FakeFFmpeg) Install(t testing.TB, dir string) string {
	t.Helper()
	RequirePOSIXShell(t)

	duration := f.DurationSeconds
	if duration <= 0 {
		duration = 10
	}
	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	script.WriteString(fakeFFmpegInfo)
	if f.FailOn != "" {
		fmt.Fprintf(&script, "case \"$*\" in *%s*) echo 'Conversion failed!' >&2; exit 1 ;; esac\n", shellQuote(f.FailOn))
	}
	script.WriteString("for last; do :; done\n")
	fmt.Fprintf(&script, "echo '  Duration: %s, start: 0.000000, bitrate: 1000 kb/s' >&2\n", clock(duration))
	fmt.Fprintf(&script, "echo 'frame=  10 fps=25.0 q=28.0 size=     256kB time=%s bitrate= 800.0kbits/s speed=2.00x' >&2\n", clock(duration/2))
	if f.Delay > 0 {
		fmt.Fprintf(&script, "sleep %g\n", f.Delay)
	}
	fmt.Fprintf(&script, "echo 'frame=  20 fps=25.0 q=28.0 size=     512kB time=%s bitrate= 800.0kbits/s speed=2.00x' >&2\n", clock(duration))
	if f.ExitCode != 0 {
		if f.Stderr != "" {
			fmt.Fprintf(&script, "printf '%%s\\n' %s >&2\n", shellQuote(f.Stderr))
		}
		fmt.Fprintf(&script, "exit %d\n", f.ExitCode)
	} else {
		fmt.Fprintf(&script, "if [ \"$last\" != %s ]; then head -c %d /dev/zero > \"$last\"; fi\n", shellQuote(os.DevNull), max(f.OutputSize, 0))
		script.WriteString("exit 0\n")
	}
	return writeExecutable(t, dir, "ffmpeg", script.String())
}

const fakeFFmpegInfo = `case "$2" in
  -version) echo 'ffmpeg version 7.1-fake Copyright (c) 2000-2024'; exit 0 ;;
  -encoders)
    echo 'Encoders:'
    echo ' ------'
    echo ' V....D libx264              libx264 H.264 / AVC'
    echo ' A....D aac                  AAC (Advanced Audio Coding)'
    exit 0 ;;
esac
`

// FakeFFprobe describes a shell script standing in for ffprobe.
type FakeFFprobe struct {
	DurationSeconds float64
	NoVideo         bool
	NoAudio         bool
	Fail            bool
}

// Install writes the script into dir and returns its path.
func (f FakeFFprobe) Install(t testing.TB, dir string) string {
	t.Helper()
	RequirePOSIXShell(t)

	if f.Fail {
		return writeExecutable(t, dir, "ffprobe", "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n")
	}
	var streams []string
	if !f.NoVideo {
		streams = append(streams, `{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080}`)
	}
	if !f.NoAudio {
		streams = append(streams, fmt.Sprintf(`{"index":%d,"codec_type":"audio","codec_name":"aac","channels":2}`, len(streams)))
	}
	payload := fmt.Sprintf(`{"streams":[%s],"format":{"duration":"%.3f"}}`, strings.Join(streams, ","), f.DurationSeconds)
	return writeExecutable(t, dir, "ffprobe", "#!/bin/sh\ncat <<'JSON'\n"+payload+"\nJSON\n")
}

// WriteStub writes an executable that exits 0 into dir.
func WriteStub(t testing.TB, dir, name string) string {
	t.Helper()
	return writeExecutable(t, dir, name, "#!/bin/sh\nexit 0\n")
}

// RequirePOSIXShell skips tests that rely on shell stubs.
func RequirePOSIXShell(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
}

func writeExecutable(t testing.TB, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(content), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

func clock(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d.00", seconds/3600, seconds/60%60, seconds%60)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
