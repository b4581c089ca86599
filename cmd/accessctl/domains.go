package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// domainsResponse mirrors the server's protected-domain listing response.
type domainsResponse struct {
	Domains []string `json:"domains"`
}

func newDomainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Manage protected domains",
	}

	cmd.AddCommand(newDomainsListCmd())
	cmd.AddCommand(newDomainsCreateCmd())

	return cmd
}

func newDomainsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered protected domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			respBody, err := globalClient.doRequest(http.MethodGet, "/api/v1/protected-domains", nil)
			if err != nil {
				return err
			}

			var resp domainsResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"domain"}
			rows := make([][]string, len(resp.Domains))
			for i, domain := range resp.Domains {
				rows[i] = []string{domain}
			}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	return cmd
}

func newDomainsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create DOMAIN",
		Short: "Register a new protected domain",
		Long: `Register a new protected domain. This adds the READ and WRITE
permissions for every layer scope to the vocabulary; grant them to
subjects with "accessctl subjects grant".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			body, err := json.Marshal(map[string]string{"domain": args[0]})
			if err != nil {
				return err
			}

			respBody, err := globalClient.doRequest(http.MethodPost, "/api/v1/protected-domains", bytes.NewReader(body))
			if err != nil {
				return err
			}

			var resp struct {
				Domain string `json:"domain"`
			}
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"domain"}
			rows := [][]string{{resp.Domain}}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	return cmd
}
