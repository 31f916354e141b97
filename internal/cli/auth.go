package cli

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) loginCmd() *cobra.Command {
	var email, password string
	var save bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}

			tok, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			if save {
				if a.v.ConfigFileUsed() == "" {
					return errors.New("--save needs --config")
				}
				a.v.Set(keyToken, tok.AccessToken)
				if err := a.v.WriteConfig(); err != nil {
					return err
				}
				a.log.Info("token saved", zap.String("config", a.v.ConfigFileUsed()))
			}

			return a.printer(cmd.OutOrStdout()).emit(tok, table.Row{"Token", "Expires in (s)"}, func(t table.Writer) {
				t.AppendRow(table.Row{tok.AccessToken, tok.ExpiresIn})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&save, "save", false, "store the token in the config file")
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the current token",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.client.WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).emit(id, table.Row{"User", "Email", "Role"}, func(t table.Writer) {
				t.AppendRow(table.Row{id.UserID, id.Email, id.Role})
			})
		},
	}
}
