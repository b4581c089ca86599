// Package main provides the accessctl binary for administering the
// catalog access server: subjects, permission grants, and protected
// domains. It is a management-plane tool that communicates with the
// access-server HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	outputFlag   string
	tokenFlag    string
	globalClient *accessClient
)

// accessClient wraps an HTTP client and the server base URL.
type accessClient struct {
	baseURL    string
	httpClient *http.Client
}

// newAccessClient creates a new client targeting the given server URL.
func newAccessClient(baseURL string) *accessClient {
	return &accessClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *accessClient) doRequest(method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tokenFlag != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFlag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to access server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Try to extract the error message from the JSON response
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "accessctl",
		Short: "CLI for the catalog access server management plane",
		Long: `accessctl is a command-line tool for administering the catalog
access server.

It provides commands for registering subjects, inspecting and replacing
permission grants, managing protected domains, and checking dataset
access for the calling credential.

The CLI communicates with the access-server HTTP API; the calling
credential must carry the USER_ADMIN or DATA_ADMIN permission for the
administrative commands.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalClient = newAccessClient(serverURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Access server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token for the access server")

	// Register subcommands
	rootCmd.AddCommand(newSubjectsCmd())
	rootCmd.AddCommand(newPermissionsCmd())
	rootCmd.AddCommand(newDomainsCmd())
	rootCmd.AddCommand(newDatasetsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
