package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/core"
)

// NewCategoriesCommand creates the categories command group.
func NewCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage income and expense categories",
	}

	cmd.AddCommand(newCategoriesListCommand(rootOpts))
	cmd.AddCommand(newCategoriesAddCommand(rootOpts))
	cmd.AddCommand(newCategoriesRenameCommand(rootOpts))
	cmd.AddCommand(newCategoriesDeleteCommand(rootOpts))
	return cmd
}

func newCategoriesListCommand(rootOpts *RootOptions) *cobra.Command {
	var income bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			cats, err := first(cmd.Context(), app.Service.SubscribeCategories(cmd.Context(), income))
			if err != nil {
				return classify("list categories", err)
			}
			return rootOpts.formatter(cmd).Print("categories", cats, formatCategories(cats))
		},
	}
	cmd.Flags().BoolVar(&income, "income", false, "list income categories instead of expense ones")
	return cmd
}

func newCategoriesAddCommand(rootOpts *RootOptions) *cobra.Command {
	var income bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			c := core.Category{Name: args[0], IsIncome: income}
			id, err := app.Service.InsertCategory(cmd.Context(), c)
			if err != nil {
				return classify("add category", err)
			}
			c.ID = id
			return rootOpts.formatter(cmd).Print("category", c, fmt.Sprintf("added category #%d", id))
		},
	}
	cmd.Flags().BoolVar(&income, "income", false, "create an income category")
	return cmd
}

// newCategoriesRenameCommand changes only the name; a category stays on the
// income or expense side it was created on.
func newCategoriesRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.Service.Category(cmd.Context(), id)
			if err != nil {
				return classify("rename category", err)
			}
			c.Name = args[1]
			if err := app.Service.UpdateCategory(cmd.Context(), c); err != nil {
				return classify("rename category", err)
			}
			return rootOpts.formatter(cmd).Print("category", c, fmt.Sprintf("renamed category #%d", id))
		},
	}
}

func newCategoriesDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := rootOpts.bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Service.DeleteCategory(cmd.Context(), core.Category{ID: id}); err != nil {
				return classify("delete category", err)
			}
			return rootOpts.formatter(cmd).Print("deleted", map[string]int64{"id": id}, fmt.Sprintf("deleted category #%d", id))
		},
	}
}
