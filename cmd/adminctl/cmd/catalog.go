package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-admin-console/browser"
	"github.com/jrsteele09/go-admin-console/internal/respond"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog <path>",
	Short:   "GET a catalog service path through the console proxy",
	Example: `  adminctl catalog v1/products?page=2`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := signIn(ctx)
		if err != nil {
			return err
		}
		defer s.Facade.Logout(ctx)

		if !s.Facade.EnsureAuthenticated(ctx) {
			return fmt.Errorf("session could not be established")
		}

		target := strings.TrimRight(consoleURL, "/") + browser.PathCatalog + strings.TrimLeft(args[0], "/")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", respond.ContentTypeJSON)

		resp, err := s.Client.HTTPClient().Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", target, err)
		}
		defer resp.Body.Close()
		log.Debug().Str("url", target).Int("status", resp.StatusCode).Msg("catalog response")

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			var e respond.ErrorBody
			_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
			return fmt.Errorf("catalog responded %d: %s", resp.StatusCode, e.Message)
		}
		_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
		return err
	},
}
