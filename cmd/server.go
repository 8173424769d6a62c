package cmd

import (
	"github.com/spf13/cobra"

	"clip-orchestrator/config"
	server2 "clip-orchestrator/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server, payment consumer and dispatch scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}

func dispatch(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "run one dispatch tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunDispatch(config)
		},
	}
}

func migrate(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the orders table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunMigrate(config)
		},
	}
}
