package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/giffer-go/internal/domain"
)

// ErrProbeMismatch means ffprobe returned a different number of values
// than fields were requested
var ErrProbeMismatch = errors.New("output doesn't match fields")

// ProbeError reports a failed ffprobe query
type ProbeError struct {
	File   string
	Fields []string
	Output string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("ffprobe %s (%s): %v", e.File, strings.Join(e.Fields, ","), e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Prober reads stream properties of a video file with ffprobe
type Prober struct {
	binary     string
	supervisor *Supervisor
}

// NewProber creates a prober running binary through supervisor
func NewProber(binary string, supervisor *Supervisor) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, supervisor: supervisor}
}

// Command returns the ffprobe invocation for file and fields
func (p *Prober) Command(file string, fields ...string) domain.Command {
	return domain.NewCommand(p.binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream="+strings.Join(fields, ","),
		"-of", "csv=p=0",
		file)
}

// Probe returns the values of fields for the first video stream of file, in
// the requested order
func (p *Prober) Probe(ctx context.Context, file string, fields ...string) ([]string, error) {
	if len(fields) == 0 {
		return nil, &ProbeError{File: file, Err: errors.New("no fields requested")}
	}

	result, err := p.supervisor.Run(ctx, p.Command(file, fields...), nil, WithoutFinalNotify())
	if err != nil {
		return nil, &ProbeError{File: file, Fields: fields, Err: err}
	}
	if !result.Success {
		return nil, &ProbeError{
			File:   file,
			Fields: fields,
			Output: strings.TrimSpace(result.Stderr),
			Err:    fmt.Errorf("exit code %d", result.ExitCode),
		}
	}

	output := strings.TrimSpace(result.Stdout)
	values := strings.Split(output, ",")
	if len(values) != len(fields) {
		return nil, &ProbeError{File: file, Fields: fields, Output: output, Err: ErrProbeMismatch}
	}
	return values, nil
}
