package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/zombor/smartreceipt/internal/receipt"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printView prints the visible receipts as a table, or the empty state
func printView(w io.Writer, v receipt.View) {
	if v.IsEmpty {
		fmt.Fprintln(w, v.EmptyMessage())
		fmt.Fprintln(w, v.EmptyHint())
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tMERCHANT\tCATEGORY\tITEMS\tTOTAL")
	for _, r := range v.Receipts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Date, r.MerchantName, r.Category.Normalize().Title(), len(r.Items), money(r.Total))
	}
	tw.Flush()
}

// printReceipt prints one receipt with its line items
func printReceipt(w io.Writer, r receipt.Receipt) {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Merchant:\t%s\n", r.MerchantName)
	when := r.Date
	if r.Time != "" {
		when += " " + r.Time
	}
	fmt.Fprintf(tw, "Date:\t%s\n", when)
	fmt.Fprintf(tw, "Category:\t%s\n", r.Category.Normalize().Title())
	if r.PaymentMethod != "" {
		fmt.Fprintf(tw, "Payment:\t%s\n", r.PaymentMethod)
	}
	tw.Flush()

	if len(r.Items) > 0 {
		fmt.Fprintln(w)
		tw = newTable(w)
		fmt.Fprintln(tw, "QTY\tITEM\tPRICE")
		for _, item := range r.Items {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", item.Quantity, item.Name, money(item.Price))
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintf(tw, "Subtotal:\t%s\n", money(r.Subtotal))
	fmt.Fprintf(tw, "Tax:\t%s\n", money(r.Tax))
	if r.Balanced() {
		fmt.Fprintf(tw, "Total:\t%s\n", money(r.Total))
	} else {
		fmt.Fprintf(tw, "Total:\t%s (does not match subtotal + tax)\n", money(r.Total))
	}
	tw.Flush()
}

// printSummary prints totals followed by the category and month breakdowns
func printSummary(w io.Writer, s receipt.Summary) {
	if s.Empty() {
		fmt.Fprintln(w, "No receipts yet")
		fmt.Fprintln(w, "Upload your first receipt to get started!")
		return
	}

	tw := newTable(w)
	fmt.Fprintf(tw, "Receipts:\t%d\n", s.TotalReceipts)
	fmt.Fprintf(tw, "Total spent:\t%s\n", money(s.TotalSpent))
	fmt.Fprintf(tw, "Average:\t%s\n", money(s.AveragePerReceipt()))
	tw.Flush()

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
	for _, share := range s.CategoryBreakdown() {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\n", share.Label, money(share.Amount), share.Percent.StringFixed(1))
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintln(tw, "MONTH\tAMOUNT")
	for _, share := range s.MonthBreakdown() {
		fmt.Fprintf(tw, "%s\t%s\n", share.Label, money(share.Amount))
	}
	tw.Flush()
}

// printCategories prints the backend's category values with display titles
func printCategories(w io.Writer, names []string) {
	tw := newTable(w)
	fmt.Fprintln(tw, "VALUE\tNAME\tCOLOR")
	for _, name := range names {
		c := receipt.Category(name)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, c.Title(), receipt.ColorFor(c))
	}
	tw.Flush()
}
