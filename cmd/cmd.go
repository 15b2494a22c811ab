package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/primarysources/internal/models"
)

func getProgressBar(total int, description string, quiet bool) *progressbar.ProgressBar {
	options := []progressbar.Option{
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetItsString("sources"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	}
	if quiet {
		options = append(options, progressbar.OptionSetWriter(io.Discard))
	}
	return progressbar.NewOptions(total, options...)
}

// progressReporter advances the bar once per finished source. The composer
// calls it from several goroutines.
func progressReporter(bar *progressbar.ProgressBar) func(models.Outcome) {
	var mu sync.Mutex
	return func(o models.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		bar.Describe(color.CyanString(" Fetched %s", o.Source))
		bar.Add(1)
	}
}

func printOutcome(o models.Outcome) {
	label := fmt.Sprintf("%-14s", o.Source)
	switch o.Status {
	case models.StatusVerified:
		color.Green("✓ %s %s (%s)", label, o.Fact.Value(), o.Rule)
	case models.StatusDefaulted:
		color.Yellow("! %s %s (default: %s)", label, o.Fact.Value(), o.Reason)
	default:
		color.Red("✗ %s %v", label, o.Err)
	}
}

func printToken(run *models.Run) {
	fmt.Printf("%s %s\n", color.CyanString("FLAG:"), run.Token.Value)
	fmt.Printf("%s %s\n", color.CyanString("SHA256:"), run.Token.Digest)
}
