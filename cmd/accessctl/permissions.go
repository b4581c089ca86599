package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// permissionsResponse mirrors the server's vocabulary listing response.
type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

func newPermissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the permission vocabulary",
		Long: `List every permission the store knows, including the per-domain
PROTECTED permissions registered through protected-domain creation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			respBody, err := globalClient.doRequest(http.MethodGet, "/api/v1/permissions", nil)
			if err != nil {
				return err
			}

			var resp permissionsResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"permission"}
			rows := make([][]string, len(resp.Permissions))
			for i, permission := range resp.Permissions {
				rows[i] = []string{permission}
			}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	return cmd
}
