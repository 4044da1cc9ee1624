package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/condoreg/internal/core"
)

func printJSON(w io.Writer, report *core.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// printReport writes a human readable summary followed by one line per
// problem, with the offending cell as it appeared in the file.
func printReport(w io.Writer, r *core.Report) {
	fmt.Fprintf(w, "%s: %s\n", r.FileName, strings.ToUpper(string(r.Status)))
	fmt.Fprintf(w, "  rows: %d  accepted: %d  rejected: %d", r.TotalRows, r.Accepted, r.Rejected)
	if r.NotAttempted > 0 {
		fmt.Fprintf(w, "  not attempted: %d", r.NotAttempted)
	}
	fmt.Fprintln(w)

	if r.Fatal != nil {
		fmt.Fprintf(w, "\n  %s\n", r.Fatal.Message)
		if msg := core.MapError(fmt.Errorf("%s", r.Fatal.Message)); msg.Action != "" && msg.Code != "ERR000" {
			fmt.Fprintf(w, "  %s (%s)\n", msg.Action, msg.Code)
		}
		return
	}

	if len(r.ErrorsByRow) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  ROW\tUNIT\tFIELD\tVALUE\tPROBLEM")
		for _, row := range r.ErrorsByRow {
			for _, fe := range row.Errors {
				fmt.Fprintf(tw, "  %d\t%s\t%s\t%q\t%s\n", row.Row, row.UnitCode, fe.Field, row.Raw[fe.Field], fe.Message)
			}
		}
		tw.Flush()
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\n  warnings:")
		for _, v := range r.Warnings {
			fmt.Fprintf(w, "    %s\n", v.Error())
		}
	}
}
