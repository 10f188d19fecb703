package main

import (
	"fmt"

	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/provider/cognito"
	"github.com/invencare/go-auth/store/filestore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg    Config
	logger *logrus.Logger

	configPath      string
	credentialsPath string
	verbose         bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "storeauth",
		Short: "Sign in to the inventory dashboard",
		Long: `storeauth manages the dashboard session of a store employee.

Credentials are kept in a local file between invocations, so a session
survives until it is signed out or the refresh token expires.

Examples:
  storeauth signin --username alice
  storeauth whoami
  storeauth get /api/inventory?store=store_001
  storeauth serve --config storeauth.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.credentialsPath, "credentials", "", "credentials file (default is $XDG_CONFIG_HOME/storeauth/credentials.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSignUpCmd(a),
		newConfirmCmd(a),
		newResendCmd(a),
		newSignInCmd(a),
		newSignOutCmd(a),
		newWhoAmICmd(a),
		newResetPasswordCmd(a),
		newConfirmResetCmd(a),
		newChangePasswordCmd(a),
		newDeleteAccountCmd(a),
		newTokenCmd(a),
		newGetCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.credentialsPath != "" {
		cfg.Credentials.Path = a.credentialsPath
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel)
	return nil
}

// session builds a manager backed by the credentials file and restores any
// stored session.
func (a *app) session(cmd *cobra.Command) (*auth.SessionManager, func(), error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	path := a.cfg.Credentials.Path
	if path == "" {
		var err error
		if path, err = filestore.DefaultPath(); err != nil {
			return nil, nil, fmt.Errorf("failed to resolve credentials path: %w", err)
		}
	}
	store := filestore.New(path)

	provider, err := cognito.NewIdentityProvider(cmd.Context(), a.cfg.CognitoProviderConfig(),
		cognito.WithLogger(namedLogger(a.logger, "cognito")),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	manager := auth.NewSessionManager(provider,
		auth.WithLogger(namedLogger(a.logger, "session")),
		auth.WithCredentialStore(store),
		auth.WithLegacyFlagPurger(store),
		auth.WithActivitySink(auditSink(a.logger)),
	)
	manager.CheckSession(cmd.Context())

	return manager, provider.Close, nil
}
