package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var outputFormat string

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the profile of the signed in admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signIn(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Facade.Logout(cmd.Context())

		if !s.Facade.EnsureAuthenticated(cmd.Context()) {
			return fmt.Errorf("session could not be established")
		}
		profile := s.Facade.State().User

		var out []byte
		switch outputFormat {
		case "json":
			out, err = json.MarshalIndent(profile, "", "  ")
		case "yaml":
			out, err = yaml.Marshal(profile)
		default:
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	whoamiCmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "output format (yaml, json)")
}
