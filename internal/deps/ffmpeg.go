package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 10 * time.Second

// Version runs "<binary> -version" and returns the first line, such as
// "ffmpeg version 7.1 Copyright ...".
func Version(ctx context.Context, binary string) (string, error) {
	out, err := run(ctx, binary, "-hide_banner", "-version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// Encoders reports which of the wanted encoder names the ffmpeg binary was
// built with.
func Encoders(ctx context.Context, binary string, wanted []string) (map[string]bool, error) {
	out, err := run(ctx, binary, "-hide_banner", "-encoders")
	if err != nil {
		return nil, err
	}
	available := parseEncoders(out)
	result := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		_, ok := available[name]
		result[name] = ok
	}
	return result, nil
}

// parseEncoders reads "ffmpeg -encoders" output. Encoder lines start with a
// six-character capability column such as " V....D libx264 ...".
func parseEncoders(out []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	started := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !started {
			if strings.HasPrefix(line, "------") {
				started = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}

// CheckEncoder extends CheckBinaries for ffmpeg by recording its version.
func CheckEncoder(ctx context.Context, status Status) Status {
	if !status.Available {
		return status
	}
	version, err := Version(ctx, status.Path)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Version = version
	return status
}

func run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", binary, strings.Join(args, " "), err, detail)
		}
		return nil, fmt.Errorf("%s %s: %w", binary, strings.Join(args, " "), err)
	}
	return out, nil
}
