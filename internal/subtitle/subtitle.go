// Package subtitle synthesizes timed subtitles from a plain text script,
// per spec.md §4.5.1: a rhythm-based fallback when no acoustic alignment is
// available, and word-timestamp-based acoustic alignment corrected against
// the script when it is.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Segment is one emitted caption.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Word is a single acoustically-timed word, as produced by a speech-to-text
// pass with word timestamps.
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+(?:\s+|$)|\n+)`)

// splitSentences splits text into non-empty trimmed sentence segments.
func splitSentences(text string) []string {
	raw := sentenceSplitRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RhythmFallback implements spec.md §4.5.1's rhythm-based fallback: split by
// sentence, distribute durations proportional to segment length (bounded to
// [1.5s, 6s] when a target total duration is known, otherwise a simpler
// length heuristic), offset all segments by a 1s mux lead-in delay.
func RhythmFallback(text string, targetDuration time.Duration) []Segment {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	durations := make([]float64, len(sentences))
	if targetDuration > 0 {
		totalChars := 0
		for _, s := range sentences {
			totalChars += len(s)
		}
		D := targetDuration.Seconds()
		tpc := math.Min(0.3, 0.9*D/float64(maxInt(totalChars, 1)))
		for i, s := range sentences {
			d := float64(len(s))*tpc + 0.5
			durations[i] = clamp(d, 1.5, 6.0)
		}
	} else {
		for i, s := range sentences {
			durations[i] = math.Max(3.0, 0.15*float64(len(s)))
		}
	}

	const leadIn = 1 * time.Second
	cursor := leadIn
	segments := make([]Segment, len(sentences))
	for i, s := range sentences {
		d := time.Duration(durations[i] * float64(time.Second))
		segments[i] = Segment{Start: cursor, End: cursor + d, Text: s}
		cursor += d
	}
	return segments
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// groupCandidates groups word-level timings into candidate captions at
// punctuation boundaries (spec.md §4.5.1 "acoustic alignment" step 1).
func groupCandidates(words []Word) []Segment {
	var out []Segment
	var buf []Word
	flush := func() {
		if len(buf) == 0 {
			return
		}
		var text strings.Builder
		for i, w := range buf {
			if i > 0 {
				text.WriteString(" ")
			}
			text.WriteString(w.Text)
		}
		out = append(out, Segment{Start: buf[0].Start, End: buf[len(buf)-1].End, Text: text.String()})
		buf = nil
	}
	for _, w := range words {
		buf = append(buf, w)
		trimmed := strings.TrimSpace(w.Text)
		if strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?") {
			flush()
		}
	}
	flush()
	return out
}

// normalizeForSimilarity strips punctuation and lowercases, per spec.md
// §4.5.1's similarity definition.
func normalizeForSimilarity(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// similarity is 1 - Levenshtein/max-len over the normalized strings
// (spec.md §4.5.1).
func similarity(a, b string) float64 {
	na, nb := normalizeForSimilarity(a), normalizeForSimilarity(b)
	maxLen := maxInt(len(na), len(nb))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein(na, nb)
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// AcousticAlign implements spec.md §4.5.1's acoustic-alignment correction:
// group word timings into candidate captions, then walk both the
// candidates and the scripted segments, merging consecutive candidates
// while doing so increases similarity to the current script segment. When
// similarity exceeds 0.8 or no better merger exists, emit the script
// segment's text with the merged candidate's timing span; trailing script
// segments fall back to the last candidate's end (or a 3s default slot).
func AcousticAlign(script []string, words []Word) []Segment {
	candidates := groupCandidates(words)
	if len(script) == 0 {
		return nil
	}

	out := make([]Segment, 0, len(script))
	ci := 0
	var lastEnd time.Duration
	for _, scriptSeg := range script {
		if ci >= len(candidates) {
			start := lastEnd
			end := start + 3*time.Second
			out = append(out, Segment{Start: start, End: end, Text: scriptSeg})
			lastEnd = end
			continue
		}

		mergedStart := candidates[ci].Start
		mergedEnd := candidates[ci].End
		mergedText := candidates[ci].Text
		bestSim := similarity(scriptSeg, mergedText)
		j := ci + 1

		for j < len(candidates) {
			tryText := mergedText + " " + candidates[j].Text
			trySim := similarity(scriptSeg, tryText)
			if trySim <= bestSim {
				break
			}
			bestSim = trySim
			mergedText = tryText
			mergedEnd = candidates[j].End
			j++
			if bestSim > 0.8 {
				break
			}
		}

		out = append(out, Segment{Start: mergedStart, End: mergedEnd, Text: scriptSeg})
		lastEnd = mergedEnd
		ci = j
	}
	return out
}

// SplitScript exposes the sentence splitter for callers that need the raw
// script segments (e.g. to pass to AcousticAlign).
func SplitScript(text string) []string {
	return splitSentences(text)
}

// RenderSRT formats segments in the standard two-line timed-subtitle record
// format (spec.md §4.5.1: "index\n HH:MM:SS,mmm --> HH:MM:SS,mmm\n text\n\n").
func RenderSRT(segments []Segment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTime(s.Start), formatSRTTime(s.End), s.Text)
	}
	return b.String()
}

func formatSRTTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
