package commands

import (
	"fmt"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
	"github.com/fivetwenty-io/strapi-client/pkg/strapi"
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var (
		query queryFlags
		all   bool
		meta  bool
	)

	cmd := &cobra.Command{
		Use:   "get RESOURCE",
		Short: "Query a content type",
		Long: `Query a collection or single type of the content API.

Filters, sorting, pagination and population are given as flags and encoded
into a bracket query string, for example:

  strapi get products --filter price:gt:10 --sort title:desc --populate-with category:name`,
		Example: `  strapi get articles --filter slug:eq:hello --populate
  strapi get products --deep category.slug:eq:shoes --page 2 --page-size 50
  strapi get products --all --output json
  strapi get --users --filter blocked:eq:false`,
		Args: func(cmd *cobra.Command, args []string) error {
			if query.builtin() {
				return cobra.NoArgs(cmd, args)
			}

			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var resource string
			if len(args) > 0 {
				resource = args[0]
			}

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			if all {
				return runGetAll(cmd, client.Client, resource, &query)
			}

			request, err := buildRequest[any](client.Client, resource, &query)
			if err != nil {
				return err
			}

			resp, err := request.Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}

			if resp.IsError() {
				return responseError(resp.Error)
			}

			if meta {
				return render(cmd.OutOrStdout(), resp)
			}

			return render(cmd.OutOrStdout(), resp.Data)
		},
	}

	query.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page of a collection")
	cmd.Flags().BoolVar(&meta, "meta", false, "output the whole envelope including meta")

	return cmd
}

// runGetAll walks every page, --page-size entries at a time.
func runGetAll(cmd *cobra.Command, client *strapi.Client, resource string, query *queryFlags) error {
	if query.page > 0 || query.start >= 0 || query.limit > 0 {
		return fmt.Errorf("%w: --all and explicit pagination", constants.ErrConflictingFlags)
	}

	pageSize := query.pageSize
	if pageSize == 0 {
		pageSize = constants.MaxPageSize
	}

	pageless := *query
	pageless.pageSize = 0

	request, err := buildRequest[[]any](client, resource, &pageless)
	if err != nil {
		return err
	}

	entries, err := strapi.FetchAllPages(cmd.Context(), request, pageSize)
	if err != nil {
		return fmt.Errorf("%w: %w", constants.ErrRequestFailed, err)
	}

	return render(cmd.OutOrStdout(), entries)
}

func responseError(body *strapi.ErrorBody) error {
	if body.Status > 0 {
		return fmt.Errorf("%w: %d %s: %s", constants.ErrRequestFailed, body.Status, body.Name, body.Message)
	}

	return fmt.Errorf("%w: %s: %s", constants.ErrRequestFailed, body.Name, body.Message)
}
