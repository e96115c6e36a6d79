package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"pulsegate/pkg/engine"
	"pulsegate/pkg/stats"
)

func newInspectCmd(a *app) *cobra.Command {
	var roomFile, xhrFile string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run a captured payload through the filter and print the result",
		Example: `  pulsegate inspect --room capture/update_pulse.json
  pulsegate inspect --xhr capture/pulse_response.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (roomFile == "") == (xhrFile == "") {
				return errors.New("exactly one of --room or --xhr is required")
			}

			d := engine.NewDispatcher(&a.cfg.Filter, stats.NewAggregator(nil), engine.WithLogger(a.logger))
			host := a.cfg.Filter.TargetHost

			var out engine.Outcome
			var original []byte
			if roomFile != "" {
				payload, err := os.ReadFile(roomFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", roomFile, err)
				}
				original = payload
				out = d.HandleWebSocket(engine.Frame{ServerAddr: host, RequestHost: host, Payload: payload})
			} else {
				body, err := os.ReadFile(xhrFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", xhrFile, err)
				}
				original = body
				out = d.HandleResponse(engine.Response{
					ServerAddr:  host,
					RequestHost: host,
					Method:      http.MethodPost,
					Path:        a.cfg.Filter.PulsePath,
					Body:        body,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "action: %s\n", out.Action)
			switch out.Action {
			case engine.ActionReplace:
				fmt.Fprintf(w, "%s\n", out.Payload)
			case engine.ActionPass:
				fmt.Fprintf(w, "%s\n", original)
			}
			fmt.Fprintln(w, d.Stats().Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&roomFile, "room", "", "file holding one WebSocket message")
	cmd.Flags().StringVar(&xhrFile, "xhr", "", "file holding one /pulse response body")
	return cmd
}
