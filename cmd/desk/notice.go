package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/zulandar/benchdesk/internal/intake"
)

var severityColors = map[intake.Severity]*color.Color{
	intake.SeverityInfo:    color.New(color.FgCyan),
	intake.SeveritySuccess: color.New(color.FgGreen),
	intake.SeverityWarning: color.New(color.FgYellow),
	intake.SeverityError:   color.New(color.FgRed),
}

// printNotice writes a notice line colored by severity.
func printNotice(w io.Writer, n intake.Notice) {
	c, ok := severityColors[n.Severity]
	if !ok {
		c = color.New(color.Reset)
	}
	fmt.Fprintf(w, "%s %s\n", c.Sprintf("[%s]", n.Severity), n.Text)
}

// createdLabel renders whether an entity was created or reused.
func createdLabel(created bool) string {
	if created {
		return color.New(color.FgGreen).Sprint("created")
	}
	return color.New(color.FgBlue).Sprint("reused")
}
