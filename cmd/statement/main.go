package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
	"bitbucket.org/mmdatafocus/contract_ledger/models/reports"
	"bitbucket.org/mmdatafocus/contract_ledger/utils"
	"bitbucket.org/mmdatafocus/contract_ledger/workflow"
)

func main() {
	contracts := flag.String("contracts", "", "Required: comma separated contract ids")
	out := flag.String("out", "statement.xlsx", "Output workbook path")
	upload := flag.Bool("upload", false, "Upload the workbook to GCS_BUCKET and print a signed link")
	expires := flag.Duration("expires", 24*time.Hour, "Signed link lifetime")
	flag.Parse()

	ids := utils.SplitList(*contracts, ',')
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "--contracts is required")
		os.Exit(2)
	}

	ctx := context.Background()
	logger := config.GetLogger()
	source, external, err := workflow.OpenStores(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stores: %v\n", err)
		os.Exit(1)
	}
	if external == nil {
		external = source
	}

	st, err := reports.LookupStatement(ctx, source, external, ids)
	if errors.Is(err, reports.ErrNoContracts) {
		fmt.Fprintf(os.Stderr, "no contracts found for %v\n", ids)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup statement: %v\n", err)
		os.Exit(1)
	}

	data, err := reports.ExportStatement(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export statement: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("%s: %d contract(s), %d detail row(s), invoiced=%s paid=%s outstanding=%s\n",
		*out, len(st.Contracts), len(st.Details),
		st.Totals.Invoiced.StringFixed(2), st.Totals.Paid.StringFixed(2), st.Totals.Outstanding.StringFixed(2))

	if *upload {
		link, err := reports.PublishStatement(ctx, st, data, *expires)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload statement: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s (expires %s)\n", link.URL, link.ExpiresAt.Format(time.RFC3339))
	}
}
