package cmd

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ibridge-systems/ibridge/cli/pkg/output"
	"github.com/ibridge-systems/ibridge/common/messaging"
)

// pingResult is the report printed by the ping command.
type pingResult struct {
	Transport              string `json:"transport" yaml:"transport"`
	Channel                string `json:"channel" yaml:"channel"`
	messaging.HealthStatus `yaml:",inline"`
}

var errNotConnected = errors.New("transport is not connected")

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the configured transport",
	Long:  "Connect to the configured transport and report whether the broker is reachable.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openTransport(cmd)
		if err != nil {
			output.Error("Transport unavailable: %v", err)
			return err
		}
		defer sess.Close()

		status := messaging.CheckClientHealth(sess.ctx, sess.client)
		result := pingResult{
			Transport:    sess.cfg.Transport.Type,
			Channel:      sess.cfg.Transport.Channel,
			HealthStatus: status,
		}

		format, _ := cmd.Flags().GetString("output")
		switch format {
		case "json":
			return output.JSON(result)
		case "yaml":
			return output.YAML(result)
		}

		table := output.NewTable([]string{"Transport", "Channel", "Connected", "Latency"})
		table.AddRow([]string{result.Transport, result.Channel, strconv.FormatBool(status.Connected), status.Latency.String()})
		table.Render()

		if !status.Connected {
			output.Error("%s", status.Error)
			return errNotConnected
		}
		output.Success("Transport %s is reachable", result.Transport)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)

	pingCmd.Flags().StringP("output", "o", "table", "output format: table, json, yaml")
}
