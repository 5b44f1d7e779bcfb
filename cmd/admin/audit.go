package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	persistlog "binrush.ai/internal/persistence/log"
	"binrush.ai/internal/protocol"
	"binrush.ai/internal/submission"
)

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	reason := fs.String("reason", "", "only show this rejection reason (\"ok\" for accepted)")
	limit := fs.Int("limit", 50, "max rows (most recent)")
	summary := fs.Bool("summary", false, "print counts per outcome only")
	_ = fs.Parse(args)

	switch *reason {
	case "", "ok", "not_ranked":
	default:
		if !protocol.IsKnownReason(*reason) {
			fmt.Fprintf(os.Stderr, "unknown reason %q\n", *reason)
			os.Exit(2)
		}
	}

	recs, err := persistlog.ReadSubmissions(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	if *summary {
		counts := map[string]int{}
		for _, r := range recs {
			counts[outcome(r)]++
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-20s %d\n", k, counts[k])
		}
		return
	}

	var rows []submission.Record
	for _, r := range recs {
		if *reason != "" && outcome(r) != *reason {
			continue
		}
		rows = append(rows, r)
	}
	if *limit > 0 && len(rows) > *limit {
		rows = rows[len(rows)-*limit:]
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tSCORE\tELAPSED\tNAME\tREMOTE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%s\n",
			time.UnixMilli(r.At).UTC().Format(time.RFC3339),
			outcome(r), r.Score,
			(time.Duration(r.ElapsedMs) * time.Millisecond).String(),
			r.Name, r.Remote)
	}
	_ = tw.Flush()
}

func outcome(r submission.Record) string {
	switch {
	case r.OK:
		return "ok"
	case r.Reason != "":
		return r.Reason
	default:
		return "not_ranked"
	}
}
