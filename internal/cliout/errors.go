package cliout

import (
	"fmt"
	"strings"
)

// Suggestion returns a plain-English next step for the handful of startup
// errors this binary's own operators actually hit, falling back to a
// generic pointer when the error doesn't match a known pattern.
func Suggestion(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	switch {
	case strings.Contains(msg, "executable file not found"):
		return "install ffmpeg/ffprobe/yt-dlp and ensure they're on $PATH, or set tools.codec/tools.codec_probe/tools.downloader in the config file"
	case strings.Contains(msg, "address already in use"):
		return "another process is already listening on this host:port; stop it or set server.port in the config file"
	case strings.Contains(msg, "parse config file"):
		return "the config file is not valid JSON; check it against SPEC_FULL.md's Config shape"
	case strings.Contains(msg, "no space left"):
		return "the scratch or cache volume is full; free space or lower cache.max_size"
	case strings.Contains(msg, "permission denied"):
		return "check filesystem permissions on server.scratch_root and cache.root"
	default:
		return "check the error message above and the config file's field ranges"
	}
}

// Format renders err with its suggestion appended, for non-JSON-mode output.
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v\nSuggestion: %s", err, Suggestion(err))
}
