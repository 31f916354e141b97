// Package cli builds the posctl command tree.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/posclient"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

const (
	keyServer   = "server"
	keyToken    = "token"
	keyOutput   = "output"
	keyConfig   = "config"
	keyLogLevel = "log-level"
	keyTimeout  = "timeout"

	outputTable = "table"
	outputJSON  = "json"
)

type app struct {
	v      *viper.Viper
	log    *zap.Logger
	client *posclient.Client
}

// NewRootCommand returns the posctl root command. Settings come from flags,
// POSCTL_* environment variables and an optional config file, in that order
// of precedence.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Manage the product catalog and record sales",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.String(keyServer, "http://localhost:8080", "gateway base url")
	pf.String(keyToken, "", "bearer token from posctl login")
	pf.StringP(keyOutput, "o", outputTable, "output format: table|json")
	pf.String(keyConfig, "", "config file")
	pf.String(keyLogLevel, "warn", "log level")
	pf.Duration(keyTimeout, 10*time.Second, "request timeout")

	for _, k := range []string{keyServer, keyToken, keyOutput, keyConfig, keyLogLevel, keyTimeout} {
		_ = a.v.BindPFlag(k, pf.Lookup(k))
	}
	a.v.SetEnvPrefix("POSCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		a.loginCmd(),
		a.whoamiCmd(),
		a.productsCmd(),
		a.salesCmd(),
	)
	return root
}

func (a *app) setup() error {
	if cfg := a.v.GetString(keyConfig); cfg != "" {
		a.v.SetConfigFile(cfg)
		// A missing file is fine; login --save creates it.
		if _, err := os.Stat(cfg); err == nil {
			if err := a.v.ReadInConfig(); err != nil {
				return err
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	switch a.v.GetString(keyOutput) {
	case outputTable, outputJSON:
	default:
		return errors.New("output must be table or json")
	}

	a.log = kit.NewLogger("posctl", a.v.GetString(keyLogLevel))
	a.client = posclient.New(a.v.GetString(keyServer), a.v.GetString(keyToken))
	if d := a.v.GetDuration(keyTimeout); d > 0 {
		a.client.Client.Timeout = d
	}
	a.log.Debug("client configured", zap.String("server", a.client.BaseURL))
	return nil
}

func (a *app) printer(w io.Writer) printer {
	return printer{w: w, json: a.v.GetString(keyOutput) == outputJSON}
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("error:", err)
		return 1
	}
	return 0
}
