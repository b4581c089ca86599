package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// subjectCreateResponse mirrors the server's subject creation response.
type subjectCreateResponse struct {
	SubjectID string `json:"subjectId"`
	Type      string `json:"type"`
	Name      string `json:"name"`
}

// subjectPermissionsResponse mirrors the server's grant listing response.
type subjectPermissionsResponse struct {
	SubjectID   string   `json:"subjectId"`
	Permissions []string `json:"permissions"`
}

func newSubjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Manage registered subjects and their grants",
	}

	cmd.AddCommand(newSubjectsCreateCmd())
	cmd.AddCommand(newSubjectsPermissionsCmd())
	cmd.AddCommand(newSubjectsGrantCmd())

	return cmd
}

func newSubjectsCreateCmd() *cobra.Command {
	var (
		subjectType string
		grants      []string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Register a new subject",
		Long: `Register a new subject (a user or a client application) with an
initial set of permission grants. Every grant must name a permission
that exists in the vocabulary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			body, err := json.Marshal(map[string]any{
				"type":        subjectType,
				"name":        args[0],
				"permissions": grants,
			})
			if err != nil {
				return err
			}

			respBody, err := globalClient.doRequest(http.MethodPost, "/api/v1/subjects", bytes.NewReader(body))
			if err != nil {
				return err
			}

			var resp subjectCreateResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"subject id", "type", "name"}
			rows := [][]string{{resp.SubjectID, resp.Type, resp.Name}}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	cmd.Flags().StringVar(&subjectType, "type", "CLIENT", "Subject type: USER or CLIENT")
	cmd.Flags().StringSliceVar(&grants, "permission", nil, "Permission grant (repeatable)")

	return cmd
}

func newSubjectsPermissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions SUBJECT_ID",
		Short: "Show a subject's permission grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/subjects/%s/permissions", args[0])
			respBody, err := globalClient.doRequest(http.MethodGet, path, nil)
			if err != nil {
				return err
			}

			var resp subjectPermissionsResponse
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

func newSubjectsGrantCmd() *cobra.Command {
	var grants []string

	cmd := &cobra.Command{
		Use:   "grant SUBJECT_ID",
		Short: "Replace a subject's permission grants",
		Long: `Replace a subject's permission grants wholesale with the given set.
Grants not listed are revoked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(outputFlag)
			if err != nil {
				return err
			}

			body, err := json.Marshal(map[string]any{"permissions": grants})
			if err != nil {
				return err
			}

			path := fmt.Sprintf("/api/v1/subjects/%s/permissions", args[0])
			respBody, err := globalClient.doRequest(http.MethodPut, path, bytes.NewReader(body))
			if err != nil {
				return err
			}

			var resp subjectPermissionsResponse
			if err := json.Unmarshal(respBody, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			headers := []string{"subject id", "permissions"}
			rows := [][]string{{resp.SubjectID, strings.Join(resp.Permissions, ", ")}}
			return printOutput(os.Stdout, format, resp, headers, rows)
		},
	}

	cmd.Flags().StringSliceVar(&grants, "permission", nil, "Permission grant (repeatable)")

	return cmd
}
