// cmd/libradesk/list.go
package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/ledger"
	"libradesk/internal/membership"
	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/view"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type listFlags struct {
	search   string
	sort     string
	dir      string
	page     int
	pageSize int
	filters  map[string]string
	asJSON   bool
}

func (c *cli) listCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:       "list <books|users|borrows|finance>",
		Short:     "Show one page of an entity",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{catalog.Schema.Entity, membership.Schema.Entity, circulation.Schema.Entity, ledger.Schema.Entity},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch args[0] {
			case catalog.Schema.Entity:
				return listPage(out, cmd, s.Books, f, printBooks)
			case membership.Schema.Entity:
				return listPage(out, cmd, s.Users, f, printUsers)
			case circulation.Schema.Entity:
				now := time.Now()
				return listPage(out, cmd, s.Borrows, f, func(w io.Writer, items []circulation.Transaction) {
					printLoans(w, items, now)
				})
			default:
				return listPage(out, cmd, s.Finance, f, printLedger)
			}
		},
	}
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "case-insensitive search over the searchable fields")
	cmd.Flags().StringVar(&f.sort, "sort", "", "sort field")
	cmd.Flags().StringVar(&f.dir, "dir", "", "sort direction: asc or desc")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "items per page (default from PAGE_SIZE)")
	cmd.Flags().StringToStringVarP(&f.filters, "filter", "f", nil, "exact-match filter, field=value (repeatable)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the page as JSON")
	return cmd
}

func (f listFlags) spec(cmd *cobra.Command, base view.Spec) view.Spec {
	spec := base.Clone()
	spec.Search = f.search
	if f.sort != "" {
		spec.SortField = f.sort
	}
	if f.dir != "" {
		spec.SortDirection = view.Direction(strings.ToLower(f.dir))
	}
	spec.Page = f.page
	if cmd.Flags().Changed("page-size") {
		spec.PageSize = f.pageSize
	}
	for field, value := range f.filters {
		spec.Filters[field] = value
	}
	return spec
}

func listPage[T records.Entity[T]](w io.Writer, cmd *cobra.Command, col *pipeline.Collection[T], f listFlags, render func(io.Writer, []T)) error {
	if err := col.SetSpec(f.spec(cmd, col.Schema().DefaultSpec())); err != nil {
		return err
	}
	frame := col.Frame()
	if f.asJSON {
		return json.NewEncoder(w).Encode(frame.Result)
	}
	render(w, frame.Result.Items)
	fmt.Fprintf(w, "\nPage %d of %d (%d matching)\n", frame.Spec.Page, max(frame.Result.TotalPages, 1), frame.Result.TotalItems)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printBooks(w io.Writer, books []catalog.Book) {
	fmt.Fprintf(w, "%-36s %-40s %-24s %9s\n", "ID", "Title", "Author", "Available")
	fmt.Fprintln(w, strings.Repeat("-", 112))
	for _, b := range books {
		fmt.Fprintf(w, "%-36s %-40s %-24s %4d/%-4d\n", b.ID, truncate(b.Title, 40), truncate(b.Author, 24), b.Available, b.Quantity)
	}
}

func printUsers(w io.Writer, users []membership.User) {
	fmt.Fprintf(w, "%-36s %-28s %-30s %-8s %5s\n", "ID", "Name", "Email", "Status", "Loans")
	fmt.Fprintln(w, strings.Repeat("-", 111))
	for _, u := range users {
		fmt.Fprintf(w, "%-36s %-28s %-30s %-8s %5d\n", u.ID, truncate(u.Name, 28), truncate(u.Email, 30), u.Status, u.CurrentBorrowed)
	}
}

func printLoans(w io.Writer, txns []circulation.Transaction, now time.Time) {
	fmt.Fprintf(w, "%-36s %-36s %-36s %-10s %-8s %5s\n", "ID", "Borrower", "Book", "Due", "Status", "Days")
	fmt.Fprintln(w, strings.Repeat("-", 136))
	for _, t := range txns {
		l := t.LoanAt(now)
		days := fmt.Sprintf("%5d", l.DaysLeft)
		if l.Status == circulation.StatusReturned {
			days = fmt.Sprintf("%5s", "-")
		}
		fmt.Fprintf(w, "%-36s %-36s %-36s %-10s %-8s %s\n", l.ID, l.BorrowerID, l.BookID, l.DueDate, l.Status, days)
	}
}

func printLedger(w io.Writer, entries []ledger.Transaction) {
	fmt.Fprintf(w, "%-36s %-36s %-8s %10s %-10s\n", "ID", "User", "Type", "Amount", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s %-36s %-8s %10.2f %-10s\n", e.ID, e.UserID, e.Type, e.Amount, e.Status)
	}
}
