package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// datasetEntry mirrors one dataset in the server's enumeration response.
type datasetEntry struct {
	Layer   string `json:"layer"`
	Domain  string `json:"domain"`
	Dataset string `json:"dataset"`
	Version int    `json:"version,omitempty"`
}

// datasetsResponse mirrors the server's enumeration response.
type datasetsResponse struct {
	Datasets []datasetEntry `json:"datasets"`
}

func newDatasetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Enumerate and check dataset access for the calling credential",
	}

	cmd.AddCommand(newDatasetsListCmd())
	cmd.AddCommand(newDatasetsCheckCmd())

	return cmd
}

func newDatasetsListCmd() *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the datasets the calling credential may act on",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			path := "/api/v1/datasets"
			if action != "" {
				path += "?action=" + url.QueryEscape(action)
			}

			respBody, err := globalClient.doRequest(http.MethodGet, path, nil)
			if err != nil {
				return err
			}

			var resp datasetsResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"layer", "domain", "dataset", "version"}
			rows := make([][]string, len(resp.Datasets))
			for i, dataset := range resp.Datasets {
				rows[i] = []string{dataset.Layer, dataset.Domain, dataset.Dataset, strconv.Itoa(dataset.Version)}
			}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	cmd.Flags().StringVar(&action, "action", "READ", "Action to enumerate for (READ or WRITE)")

	return cmd
}

func newDatasetsCheckCmd() *cobra.Command {
	var actions []string

	cmd := &cobra.Command{
		Use:   "check LAYER DOMAIN DATASET",
		Short: "Check whether the calling credential may act on a dataset",
		Long: `Check whether the calling credential may perform the given actions
on one dataset. Actions are evaluated in order; the first grant wins.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/datasets/%s/%s/%s/access",
				url.PathEscape(args[0]), url.PathEscape(args[1]), url.PathEscape(args[2]))
			if len(actions) > 0 {
				path += "?action=" + url.QueryEscape(strings.Join(actions, ","))
			}

			respBody, err := globalClient.doRequest(http.MethodGet, path, nil)
			if err != nil {
				return err
			}

			var resp struct {
				Allowed bool         `json:"allowed"`
				Dataset datasetEntry `json:"dataset"`
			}
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"allowed", "layer", "domain", "dataset"}
			rows := [][]string{{
				strconv.FormatBool(resp.Allowed),
				resp.Dataset.Layer, resp.Dataset.Domain, resp.Dataset.Dataset,
			}}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	cmd.Flags().StringSliceVar(&actions, "action", nil, "Action to check, in priority order (repeatable)")

	return cmd
}
