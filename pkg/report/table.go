package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
)

var (
	validText   = color.New(color.FgGreen).SprintFunc()
	invalidText = color.New(color.FgRed).SprintFunc()
	headerText  = color.New(color.Bold).SprintFunc()
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// validity renders a verdict; both branches use escape codes of equal length
// so tabwriter columns stay aligned
func validity(ok bool) string {
	if ok {
		return validText("valid")
	}
	return invalidText("invalid")
}

func outcomeText(o models.Outcome) string {
	if o == models.OutcomeCompleted {
		return validText(string(o))
	}
	return invalidText(string(o))
}

// PrintTable writes the records of rep as an aligned table followed by a one-line summary
func PrintTable(w io.Writer, rep *pipeline.Report) error {
	fmt.Fprintf(w, "%s %s (%s)\n", headerText("Domain:"), rep.Domain, outcomeText(rep.Outcome))
	if rep.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", rep.Err)
	}
	if len(rep.Records) == 0 {
		fmt.Fprintln(w, "  no email addresses")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  EMAIL\tCONF\tSTATUS\tSOURCE\tREASON")
	for _, r := range rep.Records {
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%s\n", r.Email, r.Confidence, validity(r.IsValid), r.Source, r.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "  %d pages, %d found, %d generated, %d valid\n",
		len(rep.URLs), rep.FoundCount, rep.GeneratedCount, rep.ValidCount())
	return err
}

// PrintSummary writes one row per domain run
func PrintSummary(w io.Writer, results []orchestrate.DomainResult) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "DOMAIN\tOUTCOME\tPAGES\tRECORDS\tVALID\tDURATION")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%v\n", r.Domain, outcomeText(r.Report.Outcome),
			len(r.Report.URLs), len(r.Report.Records), r.Report.ValidCount(), r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

// PrintHistory writes stored results of a domain, followed by its sessions
func PrintHistory(w io.Writer, domain string, entries []models.ResultDBEntry, sessions []models.Session) error {
	fmt.Fprintf(w, "%s %s\n", headerText("Domain:"), domain)
	tw := newTable(w)
	if len(entries) == 0 {
		fmt.Fprintln(tw, "  no stored results")
	} else {
		fmt.Fprintln(tw, "  EMAIL\tCONF\tSTATUS\tSOURCE\tSEEN\tLAST SEEN")
		for _, e := range entries {
			fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%d\t%s\n", e.Email, e.Confidence, validity(e.IsValid),
				e.Source, e.SeenCount, e.LastSeen.Local().Format("2006-01-02 15:04"))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\n%s\n", headerText("Sessions:"))
	tw = newTable(w)
	fmt.Fprintln(tw, "  STARTED\tOUTCOME\tPAGES\tFOUND\tGENERATED\tVALID")
	for _, s := range sessions {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%d\t%d\n", s.StartedAt.Local().Format("2006-01-02 15:04"),
			outcomeText(s.Outcome), s.URLCount, s.FoundCount, s.GeneratedCount, s.ValidCount)
	}
	return tw.Flush()
}
