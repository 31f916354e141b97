package cli

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

func (a *app) salesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sales",
		Aliases: []string{"sale", "s"},
		Short:   "Record sales and inspect the ledger",
	}
	cmd.AddCommand(a.salesListCmd(), a.salesRegisterCmd(), a.salesSummaryCmd())
	return cmd
}

var (
	saleHeader    = table.Row{"Date", "Client", "Product", "Qty", "Unit", "Total", "Seller"}
	receiptHeader = table.Row{"Date", "Client", "Product", "Qty", "Unit", "Total", "Seller", "Stock left"}
)

func saleRow(s domain.Sale) table.Row {
	return table.Row{s.Date, s.Client, s.ProductName, s.Quantity, s.UnitPrice.StringFixed(2), s.Total.StringFixed(2), s.Seller}
}

func (a *app) salesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the sales ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := a.client.ListSales(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(ledger, saleHeader, func(t table.Writer) {
				for _, s := range ledger {
					t.AppendRow(saleRow(s))
				}
			})
		},
	}
}

func (a *app) salesRegisterCmd() *cobra.Command {
	var req domain.SaleRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Sell units of a product by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Client == "" || req.ProductName == "" {
				return errors.New("--client and --product are required")
			}
			rc, err := a.client.RegisterSale(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(rc, receiptHeader, func(t table.Writer) {
				t.AppendRow(append(saleRow(rc.Sale), rc.RemainingStock))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Client, "client", "", "client name")
	f.StringVar(&req.ProductName, "product", "", "exact product name")
	f.Int64Var(&req.Quantity, "quantity", 1, "units sold")
	f.StringVar(&req.Seller, "seller", "", "seller; defaults to the logged in user")
	f.StringVar(&req.Date, "date", "", "sale date YYYY-MM-DD; defaults to today")
	return cmd
}

func (a *app) salesSummaryCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Totals for one day and for all time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.client.SalesSummary(cmd.Context(), date)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(sum, table.Row{"Period", "Sales", "Units", "Revenue"}, func(t table.Writer) {
				t.AppendRow(table.Row{sum.Date, sum.Day.Sales, sum.Day.Units, sum.Day.Revenue.StringFixed(2)})
				t.AppendRow(table.Row{"all time", sum.AllTime.Sales, sum.AllTime.Units, sum.AllTime.Revenue.StringFixed(2)})
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day YYYY-MM-DD; defaults to today")
	return cmd
}
