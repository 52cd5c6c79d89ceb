package main

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/pkg/apiclient"
	"coopregistry/portal-backend/pkg/repository"
)

var (
	docLocale    string
	exportFormat string
	statusFilter string
	province     string
	search       string
	snapPath     string
	snapElement  string
	snapFilename string
	snapTitle    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange --username/--password for a token and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return fmt.Errorf("--username is required")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		tok, err := apiclient.New(serverURL).Login(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "export COOPCTL_TOKEN=%s\n", tok.AccessToken)
		fmt.Fprintf(cmd.ErrOrStderr(), "role %s, expires %s\n", tok.Role, tok.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var certificateCmd = &cobra.Command{
	Use:   "certificate <cooperative-id>",
	Short: "Generate the registration certificate of an approved cooperative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid cooperative id: %w", err)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		f, err := api.Download(ctx, http.MethodPost,
			fmt.Sprintf("/api/v1/cooperatives/%s/certificate", id),
			url.Values{"locale": {docLocale}}, nil)
		if err != nil {
			return err
		}
		return save(ctx, cmd, f)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export registry tables as PDF, Excel or CSV",
}

var exportDirectoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Export the cooperative directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		q := url.Values{"format": {exportFormat}, "locale": {docLocale}}
		if statusFilter != "" {
			q.Set("status", statusFilter)
		}
		if province != "" {
			q.Set("province", province)
		}
		if search != "" {
			q.Set("search", search)
		}
		f, err := api.Download(ctx, http.MethodGet, "/api/v1/exports/directory", q, nil)
		if err != nil {
			return err
		}
		return save(ctx, cmd, f)
	},
}

var exportMembersCmd = &cobra.Command{
	Use:   "members <cooperative-id>",
	Short: "Export the member list of one cooperative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid cooperative id: %w", err)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		f, err := api.Download(ctx, http.MethodGet, "/api/v1/exports/members/"+id.String(),
			url.Values{"format": {exportFormat}, "locale": {docLocale}}, nil)
		if err != nil {
			return err
		}
		return save(ctx, cmd, f)
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture an element of a portal page as a PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		f, err := api.Download(ctx, http.MethodPost, "/api/v1/exports/snapshot", nil, map[string]string{
			"path":       snapPath,
			"element_id": snapElement,
			"filename":   snapFilename,
			"title":      snapTitle,
		})
		if err != nil {
			return err
		}
		return save(ctx, cmd, f)
	},
}

var cooperativesCmd = &cobra.Command{
	Use:     "cooperatives",
	Aliases: []string{"coops"},
	Short:   "Inspect and manage registered cooperatives",
}

var cooperativesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cooperatives",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		client := apiclient.NewClient[cooperatives.Cooperative](api, "/api/v1/cooperatives")
		q := repository.Query{Search: search, PageSize: repository.MaxPageSize}
		if statusFilter != "" {
			q = q.WithFilter("status", statusFilter)
		}
		if province != "" {
			q = q.WithFilter("province", province)
		}
		var coops []cooperatives.Cooperative
		for q.Page = 1; ; q.Page++ {
			page, err := client.List(ctx, q)
			if err != nil {
				return err
			}
			coops = append(coops, page.Items...)
			if q.Page >= page.TotalPages {
				break
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLICENSE\tNAME\tPROVINCE\tSTATUS\tMEMBERS")
		for _, c := range coops {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.LicenseNumber, c.NameEnglish, c.Province, c.Status, c.MemberCount)
		}
		return w.Flush()
	},
}

var cooperativesStatusCmd = &cobra.Command{
	Use:   "status <cooperative-id> <status>",
	Short: "Move a cooperative to a new registration status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid cooperative id: %w", err)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		api, err := connect(ctx)
		if err != nil {
			return err
		}
		var coop cooperatives.Cooperative
		if err := api.Do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/cooperatives/%s/status", id), nil,
			map[string]string{"status": args[1]}, &coop); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", coop.LicenseNumber, coop.Status)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{certificateCmd, exportDirectoryCmd, exportMembersCmd} {
		cmd.Flags().StringVarP(&docLocale, "locale", "l", "lo", "document language: lo or en")
	}
	for _, cmd := range []*cobra.Command{exportDirectoryCmd, exportMembersCmd} {
		cmd.Flags().StringVarP(&exportFormat, "format", "f", "pdf", "pdf, xlsx or csv")
	}
	for _, cmd := range []*cobra.Command{exportDirectoryCmd, cooperativesListCmd} {
		cmd.Flags().StringVar(&statusFilter, "status", "", "only cooperatives with this status")
		cmd.Flags().StringVar(&province, "province", "", "only cooperatives in this province")
		cmd.Flags().StringVar(&search, "search", "", "free-text search")
	}

	snapshotCmd.Flags().StringVar(&snapPath, "path", "/directory", "portal page to capture")
	snapshotCmd.Flags().StringVar(&snapElement, "element", "", "id of the element to capture")
	snapshotCmd.Flags().StringVar(&snapFilename, "filename", "", "saved filename")
	snapshotCmd.Flags().StringVar(&snapTitle, "title", "", "document title")
	_ = snapshotCmd.MarkFlagRequired("element")
}
