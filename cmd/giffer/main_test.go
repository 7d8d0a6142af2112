package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/giffer-go/internal/domain"
)

func TestJobRequest(t *testing.T) {
	req, err := jobRequest(`ffmpeg -i "in file.mp4" out.gif`, nil)
	require.NoError(t, err)
	assert.Equal(t, `ffmpeg -i "in file.mp4" out.gif`, req.CommandLine)

	req, err = jobRequest("", []string{"yt-dlp", "-f", "mp4", "URL"})
	require.NoError(t, err)
	assert.Equal(t, "yt-dlp", req.Tool)
	assert.Equal(t, []string{"-f", "mp4", "URL"}, req.Args)

	_, err = jobRequest("ffmpeg", []string{"ffmpeg"})
	assert.Error(t, err)

	_, err = jobRequest("", nil)
	assert.Error(t, err)
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	report := progressPrinter(&buf)

	assert.Equal(t, domain.Continue, report(domain.ProgressState{Percent: 5, Status: "Downloaded 5%...", Fresh: true}))
	report(domain.ProgressState{Percent: 5, Status: "Downloaded 5%...", Fresh: true})
	report(domain.ProgressState{Percent: 5})
	report(domain.ProgressState{Percent: 7, Status: "7", Fresh: true})
	report(domain.ProgressState{Percent: 7, Done: true})

	assert.Equal(t, "\r5% Downloaded 5%...\r7% 7               \n", buf.String())
}

func TestJobExit(t *testing.T) {
	assert.NoError(t, jobExit(&domain.Job{Status: domain.JobCompleted}, nil))

	var exit *exitError
	require.ErrorAs(t, jobExit(&domain.Job{Status: domain.JobCancelled}, nil), &exit)
	assert.Equal(t, 130, exit.code)

	require.ErrorAs(t, jobExit(&domain.Job{Status: domain.JobFailed, ExitCode: 3}, nil), &exit)
	assert.Equal(t, 3, exit.code)

	require.ErrorAs(t, jobExit(&domain.Job{Status: domain.JobFailed, ExitCode: -1}, nil), &exit)
	assert.Equal(t, 1, exit.code)
}

func TestTruncateAndProgressText(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 8))
	assert.Equal(t, "abcde...", truncate("abcdefghijk", 8))
	assert.Equal(t, "-", progressText(domain.PercentUnknown))
	assert.Equal(t, "42%", progressText(42))
}
