package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

const (
	// TruncationLimit is the digit count above which results are shortened
	// on the terminal.
	TruncationLimit = 100
	// DisplayEdges is the number of leading and trailing digits kept when a
	// result is shortened.
	DisplayEdges = 25
	// SpinnerRefreshRate is the spinner frame interval.
	SpinnerRefreshRate = 100 * time.Millisecond
)

// Spinner abstracts the terminal spinner shown while a request is in
// flight, so tests can observe it without a terminal.
type Spinner interface {
	Start()
	Stop()
	// UpdateSuffix sets the text displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts spinner.Spinner to Spinner.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

// newSpinner builds the spinner used by the REPL. Tests replace it.
var newSpinner = func(out io.Writer) Spinner {
	s := spinner.New(spinner.CharSets[11], SpinnerRefreshRate,
		spinner.WithWriter(out),
		spinner.WithHiddenCursor(true),
	)
	return &realSpinner{s}
}
