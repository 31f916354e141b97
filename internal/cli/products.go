package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

var productHeader = table.Row{"ID", "Name", "Category", "Price", "Stock"}

func productRow(p domain.Product) table.Row {
	return table.Row{p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Quantity}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return id, nil
}

func (a *app) productsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product", "p"},
		Short:   "Browse and edit the catalog",
	}
	cmd.AddCommand(
		a.productsListCmd(),
		a.productsGetCmd(),
		a.productsSearchCmd(),
		a.productsCreateCmd(),
		a.productsUpdateCmd(),
		a.productsDeleteCmd(),
		a.productsNextIDCmd(),
	)
	return cmd
}

func (a *app) productsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every product ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.client.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(list, productHeader, func(t table.Writer) {
				for _, p := range list {
					t.AppendRow(productRow(p))
				}
				t.AppendFooter(table.Row{"", "", "", "Total", len(list)})
			})
		},
	}
}

func (a *app) productsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(p, nil, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"ID", p.ID},
					{"Name", p.Name},
					{"Description", p.Description},
					{"Category", p.Category},
					{"Price", p.Price.StringFixed(2)},
					{"Stock", p.Quantity},
					{"Image", p.ImageURL},
				})
			})
		},
	}
}

func (a *app) productsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <category text>",
		Short: "Find products whose category contains the text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			res, err := a.client.SearchProducts(cmd.Context(), text)
			if err != nil {
				return err
			}
			if res.NoMatches && !a.printer(cmd.OutOrStdout()).json {
				cmd.Printf("no products match %q\n", res.Query)
				return nil
			}
			return a.printer(cmd.OutOrStdout()).emit(res, productHeader, func(t table.Writer) {
				for _, p := range res.Products {
					t.AppendRow(productRow(p))
				}
			})
		},
	}
}

type productFlags struct {
	name, description, price, imageURL, category string
	quantity                                     int64
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "product name")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.price, "price", "0", "unit price")
	cmd.Flags().Int64Var(&f.quantity, "quantity", 0, "units in stock")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "absolute http(s) image url")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
}

func (f *productFlags) parsePrice() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(f.price)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q", f.price)
	}
	return d, nil
}

func (a *app) productsCreateCmd() *cobra.Command {
	var f productFlags
	var id int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := f.parsePrice()
			if err != nil {
				return err
			}
			req := catalog.CreateRequest{
				Name:        f.name,
				Description: f.description,
				Price:       price,
				Quantity:    f.quantity,
				ImageURL:    f.imageURL,
				Category:    f.category,
			}
			if cmd.Flags().Changed("id") {
				req.ID = &id
			}

			p, err := a.client.CreateProduct(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(p, productHeader, func(t table.Writer) {
				t.AppendRow(productRow(p))
			})
		},
	}
	f.register(cmd)
	cmd.Flags().Int64Var(&id, "id", 0, "product id; allocated when omitted")
	return cmd
}

func (a *app) productsUpdateCmd() *cobra.Command {
	var f productFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a product (admin); unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cur, err := a.client.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}

			changes := domain.ProductChanges{
				Name:        cur.Name,
				Description: cur.Description,
				Price:       cur.Price,
				Quantity:    cur.Quantity,
				ImageURL:    cur.ImageURL,
			}
			fl := cmd.Flags()
			if fl.Changed("name") {
				changes.Name = f.name
			}
			if fl.Changed("description") {
				changes.Description = f.description
			}
			if fl.Changed("price") {
				if changes.Price, err = f.parsePrice(); err != nil {
					return err
				}
			}
			if fl.Changed("quantity") {
				changes.Quantity = f.quantity
			}
			if fl.Changed("image-url") {
				changes.ImageURL = f.imageURL
			}
			if fl.Changed("category") {
				changes.Category = &f.category
			}

			p, err := a.client.UpdateProduct(cmd.Context(), id, changes)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(p, productHeader, func(t table.Writer) {
				t.AppendRow(productRow(p))
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) productsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a product (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			if err := a.client.DeleteProduct(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("deleted product %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func (a *app) productsNextIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next-id",
		Short: "Reserve the next product id (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.client.NextProductID(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(map[string]int64{"next_id": id}, table.Row{"Next ID"}, func(t table.Writer) {
				t.AppendRow(table.Row{id})
			})
		},
	}
}
