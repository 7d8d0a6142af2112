package infrastructure

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourusername/giffer-go/internal/domain"
)

// Chunk is the output a process produced since the previous poll
type Chunk struct {
	Stdout  string
	Stderr  string
	Command domain.Command
}

// Empty reports whether neither stream produced anything
func (c Chunk) Empty() bool {
	return c.Stdout == "" && c.Stderr == ""
}

// Combined joins stdout and stderr, stdout first
func (c Chunk) Combined() string {
	switch {
	case c.Stdout == "":
		return c.Stderr
	case c.Stderr == "":
		return c.Stdout
	}
	return c.Stdout + "\n" + c.Stderr
}

// Matcher recognizes one tool's progress grammar
type Matcher interface {
	Name() string
	Match(chunk Chunk) (domain.ProgressState, bool)
}

// Translator turns output chunks into progress. Matchers are tried in
// registration order and the first match wins the chunk.
type Translator struct {
	matchers []Matcher
}

// NewTranslator creates a translator. Without matchers it uses
// DefaultMatchers.
func NewTranslator(matchers ...Matcher) *Translator {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Translator{matchers: append([]Matcher(nil), matchers...)}
}

// DefaultMatchers returns the built-in matchers in priority order
func DefaultMatchers() []Matcher {
	return []Matcher{
		NewDownloadPercentMatcher(),
		NewTranscodeTimeMatcher(),
		NewAnnotatedStepMatcher(),
	}
}

// Matchers returns the registered matcher names in priority order
func (t *Translator) Matchers() []string {
	names := make([]string, len(t.matchers))
	for i, m := range t.matchers {
		names[i] = m.Name()
	}
	return names
}

// Translate returns the progress found in chunk, or false when nothing in it
// is recognized
func (t *Translator) Translate(chunk Chunk) (domain.ProgressState, bool) {
	if chunk.Empty() {
		return domain.NoProgress(), false
	}
	for _, m := range t.matchers {
		if state, ok := m.Match(chunk); ok {
			state.Fresh = true
			return state, true
		}
	}
	return domain.NoProgress(), false
}

// lastSubmatch returns the submatches of the last occurrence of re in s
func lastSubmatch(re *regexp.Regexp, s string) []string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// DownloadPercentMatcher reads yt-dlp style "[download]  42.0% of" lines
type DownloadPercentMatcher struct {
	re *regexp.Regexp
}

func NewDownloadPercentMatcher() *DownloadPercentMatcher {
	return &DownloadPercentMatcher{
		re: regexp.MustCompile(`\[download\]\s+([0-9]+(?:\.[0-9]+)?)%\s+of`),
	}
}

func (m *DownloadPercentMatcher) Name() string { return "download-percent" }

func (m *DownloadPercentMatcher) Match(chunk Chunk) (domain.ProgressState, bool) {
	sm := lastSubmatch(m.re, chunk.Combined())
	if sm == nil {
		return domain.NoProgress(), false
	}
	f, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return domain.NoProgress(), false
	}
	percent := domain.ClampPercent(int(math.Floor(f)))
	return domain.ProgressState{
		Status:  fmt.Sprintf("Downloaded %d%%...", percent),
		Percent: percent,
	}, true
}

// TranscodeTimeMatcher reads ffmpeg style "frame= ... time=00:00:03.20" lines.
// ffmpeg rarely knows the total length, so only the status is set.
type TranscodeTimeMatcher struct {
	re *regexp.Regexp
}

func NewTranscodeTimeMatcher() *TranscodeTimeMatcher {
	return &TranscodeTimeMatcher{
		re: regexp.MustCompile(`frame=[^\r\n]*?time=\s*([0-9][0-9:.]*)`),
	}
}

func (m *TranscodeTimeMatcher) Name() string { return "transcode-time" }

func (m *TranscodeTimeMatcher) Match(chunk Chunk) (domain.ProgressState, bool) {
	sm := lastSubmatch(m.re, chunk.Combined())
	if sm == nil {
		return domain.NoProgress(), false
	}
	ms := domain.ParseDuration(sm[1])
	return domain.ProgressState{
		Status:  fmt.Sprintf("Extracted %.1f seconds...", float64(ms)/1000),
		Percent: domain.PercentUnknown,
	}, true
}

// AnnotatedStepMatcher reads step annotations embedded as
// "comment" "LABEL:N". N of -1 means the step has no known percentage.
type AnnotatedStepMatcher struct {
	re *regexp.Regexp
}

func NewAnnotatedStepMatcher() *AnnotatedStepMatcher {
	return &AnnotatedStepMatcher{
		re: regexp.MustCompile(`"comment"\s+"([^"]*):(-?[0-9]+)"`),
	}
}

func (m *AnnotatedStepMatcher) Name() string { return "annotated-step" }

func (m *AnnotatedStepMatcher) Match(chunk Chunk) (domain.ProgressState, bool) {
	sm := lastSubmatch(m.re, chunk.Combined())
	if sm == nil {
		return domain.NoProgress(), false
	}
	label := strings.TrimSpace(sm[1])
	n, err := strconv.Atoi(sm[2])
	if err != nil || n < 0 {
		return domain.ProgressState{Status: label, Percent: domain.PercentUnknown}, true
	}
	percent := domain.ClampPercent(n)
	return domain.ProgressState{
		Status:  fmt.Sprintf("%d%% %s", percent, label),
		Percent: percent,
	}, true
}

// ForTool restricts m to commands whose executable is tool
func ForTool(tool string, m Matcher) Matcher {
	return &toolMatcher{tool: tool, inner: m}
}

type toolMatcher struct {
	tool  string
	inner Matcher
}

func (m *toolMatcher) Name() string { return m.tool + "/" + m.inner.Name() }

func (m *toolMatcher) Match(chunk Chunk) (domain.ProgressState, bool) {
	if chunk.Command.Tool() != m.tool {
		return domain.NoProgress(), false
	}
	return m.inner.Match(chunk)
}

// progressTracker feeds one process's output through a Translator, one
// poll at a time. It keeps the last percent and holds back a trailing
// partial line until it is terminated or the stream stays quiet for a poll.
type progressTracker struct {
	translator *Translator
	command    domain.Command
	stdout     lineAssembler
	stderr     lineAssembler
	percent    int
}

func newProgressTracker(t *Translator, cmd domain.Command) *progressTracker {
	return &progressTracker{translator: t, command: cmd, percent: domain.PercentUnknown}
}

// next translates the bytes that arrived since the previous call
func (pt *progressTracker) next(stdout, stderr []byte) domain.ProgressState {
	return pt.translate(Chunk{
		Stdout:  pt.stdout.feed(stdout),
		Stderr:  pt.stderr.feed(stderr),
		Command: pt.command,
	})
}

// flush translates the remaining bytes plus anything held back
func (pt *progressTracker) flush(stdout, stderr []byte) domain.ProgressState {
	return pt.translate(Chunk{
		Stdout:  pt.stdout.flush(stdout),
		Stderr:  pt.stderr.flush(stderr),
		Command: pt.command,
	})
}

func (pt *progressTracker) translate(chunk Chunk) domain.ProgressState {
	state, ok := pt.translator.Translate(chunk)
	if !ok {
		state = domain.NoProgress()
	}
	if state.HasPercent() {
		pt.percent = state.Percent
	} else {
		state.Percent = pt.percent
	}
	return state
}

// lineAssembler splits a byte stream at \r or \n
type lineAssembler struct {
	pending string
}

func (a *lineAssembler) feed(data []byte) string {
	if len(data) == 0 {
		// quiet for a whole poll, release what was held back
		out := a.pending
		a.pending = ""
		return out
	}
	text := a.pending + string(data)
	i := strings.LastIndexAny(text, "\r\n")
	if i < 0 {
		a.pending = text
		return ""
	}
	a.pending = text[i+1:]
	return text[:i+1]
}

func (a *lineAssembler) flush(data []byte) string {
	out := a.pending + string(data)
	a.pending = ""
	return out
}
