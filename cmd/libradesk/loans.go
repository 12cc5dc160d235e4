// cmd/libradesk/loans.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"libradesk/internal/circulation"
	"libradesk/internal/records"
)

func (c *cli) borrowCmd() *cobra.Command {
	var from, due string
	cmd := &cobra.Command{
		Use:   "borrow <user-id> <book-id>",
		Short: "Open a loan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := circulation.BorrowRequest{BorrowerID: args[0], BookID: args[1]}
			var err error
			if from != "" {
				if req.BorrowDate, err = records.ParseDate(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if due != "" {
				if req.DueDate, err = records.ParseDate(due); err != nil {
					return fmt.Errorf("--due: %w", err)
				}
			}

			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			txn, err := s.Circulation.Borrow(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Borrowed: %s (due %s)\n", txn.ID, txn.DueDate)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "borrow date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD (default borrow date plus LOAN_PERIOD_DAYS)")
	return cmd
}

func (c *cli) returnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <transaction-id>",
		Short: "Close a loan and put the copy back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			txn, err := s.Circulation.Return(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Returned: %s on %s\n", txn.ID, txn.ReturnDate)
			return nil
		},
	}
}
