package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/chatagent"
	"github.com/hupe1980/chatagent/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over a websocket",
		Long: `Serves one conversation at /ws. Clients send {"text": "..."} and receive
every status of the turn as JSON. POST /chat and GET /healthz are also served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			app, err := chatagent.Build(cmd.Context(), cfg, func(o *chatagent.Options) {
				o.WebApp = true
			})
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(app.Runner, func(o *server.Options) {
				o.Addr = cfg.Server.Addr
				o.Logger = app.Logger
				o.Artifacts = app.Artifacts
				o.SessionID = app.Agent.SessionID()
			})
			cmd.Println(successStyle.Render("listening on " + cfg.Server.Addr))
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
