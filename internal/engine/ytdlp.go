package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hbomb79/Selene/pkg/logger"
)

var log = logger.Get("Engine")

type (
	Config struct {
		// BinaryPath is the yt-dlp executable to invoke. When empty, the
		// binary is resolved from the PATH.
		BinaryPath string `yaml:"binary_path" env:"ENGINE_BINARY_PATH" env-default:"yt-dlp"`
	}

	ytdlpEngine struct {
		binaryPath string
	}
)

// New creates an Engine backed by the yt-dlp binary described
// by the config provided.
func New(config Config) *ytdlpEngine {
	binary := config.BinaryPath
	if binary == "" {
		binary = "yt-dlp"
	}

	return &ytdlpEngine{binaryPath: binary}
}

// Probe asks yt-dlp to dump the info JSON for the URL provided, without
// downloading any media. Certificate validation is disabled to match the
// behaviour of the download path.
func (engine *ytdlpEngine) Probe(ctx context.Context, url string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, engine.binaryPath,
		"-J",
		"--no-warnings",
		"--no-check-certificates",
		"--no-playlist",
		url,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Probing %s via %s\n", url, engine.binaryPath)
	if err := cmd.Run(); err != nil {
		return nil, &ExtractionError{Message: extractEngineError(stderr.String(), err)}
	}

	metadata := &Metadata{}
	if err := json.Unmarshal(stdout.Bytes(), metadata); err != nil {
		return nil, &ExtractionError{Message: fmt.Sprintf("malformed metadata from engine: %s", err)}
	}

	return metadata, nil
}

// Download runs yt-dlp with the per-job configuration provided, streaming
// each progress line to the callback as it's emitted. This call blocks until
// the engine process exits.
func (engine *ytdlpEngine) Download(ctx context.Context, opts DownloadOptions, onProgress ProgressFunc) error {
	args := []string{
		"-f", opts.FormatSelector,
		"-o", opts.OutputTemplate,
		"--newline",
		"--no-warnings",
		"--no-check-certificates",
		"--no-playlist",
	}

	if opts.FFmpegDir != "" {
		args = append(args, "--ffmpeg-location", opts.FFmpegDir)
	}

	if opts.Clip != nil {
		args = append(args,
			"--download-sections", fmt.Sprintf("*%d-%d", opts.Clip.StartSeconds, opts.Clip.EndSeconds),
			"--force-keyframes-at-cuts",
		)
	}

	args = append(args, opts.URL)
	cmd := exec.CommandContext(ctx, engine.binaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &DownloadError{Message: fmt.Sprintf("failed to attach to engine output: %s", err)}
	}

	log.Debugf("Starting engine download (selector=%s template=%s)\n", opts.FormatSelector, opts.OutputTemplate)
	if err := cmd.Start(); err != nil {
		return &DownloadError{Message: extractEngineError(stderr.String(), err)}
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if event, ok := classifyProgressLine(scanner.Text()); ok && onProgress != nil {
			onProgress(event)
		}
	}

	if err := cmd.Wait(); err != nil {
		return &DownloadError{Message: extractEngineError(stderr.String(), err)}
	}

	return nil
}

// classifyProgressLine decides whether a line of engine output is a progress
// signal, and if so which kind. Transfer lines look like
// "[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:05"; the concluding
// summary line replaces the ETA with the elapsed time ("100% of ... in ...").
// Post-processor chatter (merging, audio extraction, fixups) also indicates
// the transfer itself has concluded.
func classifyProgressLine(line string) (ProgressEvent, bool) {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, "[download]") {
		if strings.Contains(trimmed, "100% of") && strings.Contains(trimmed, " in ") {
			return ProgressEvent{Kind: ProgressFinished, Line: trimmed}, true
		}

		if strings.Contains(trimmed, "%") {
			return ProgressEvent{Kind: ProgressTransferring, Line: trimmed}, true
		}

		return ProgressEvent{}, false
	}

	for _, marker := range []string{"[Merger]", "[ExtractAudio]", "[Fixup", "[VideoConvertor]"} {
		if strings.HasPrefix(trimmed, marker) {
			return ProgressEvent{Kind: ProgressFinished, Line: trimmed}, true
		}
	}

	return ProgressEvent{}, false
}

// extractEngineError tries to pick out the relevant information from the
// engine's stderr. yt-dlp prefixes fatal problems with "ERROR:"; if no such
// line exists the last non-empty line is used, falling back to the process
// error itself.
func extractEngineError(stderr string, procErr error) string {
	var lastLine string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lastLine = line
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}

	if lastLine != "" {
		return lastLine
	}

	return procErr.Error()
}
