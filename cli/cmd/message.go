package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibridge-systems/ibridge/cli/pkg/output"
	"github.com/ibridge-systems/ibridge/common/bridge"
	"github.com/ibridge-systems/ibridge/common/envelope"
	"github.com/ibridge-systems/ibridge/common/logging"
	"github.com/ibridge-systems/ibridge/common/metrics"
	"github.com/ibridge-systems/ibridge/common/signing"
)

var commandCmd = newMessageCmd(envelope.KindCommand)

var eventCmd = newMessageCmd(envelope.KindEvent)

func newMessageCmd(kind envelope.Kind) *cobra.Command {
	c := &cobra.Command{
		Use:   kind.String() + " <module> <submodule> <name>",
		Short: fmt.Sprintf("Build a %s envelope", kind),
		Long: fmt.Sprintf(`Build a %s envelope addressed to module/submodule and print its wire form.

Values passed with --arg, --kwarg and --option are parsed as JSON when possible
and kept as strings otherwise.`, kind),
		Example: fmt.Sprintf(`  ibridgemsg %[1]s orders api place_order --arg '"sku-1"' --arg 3 --kwarg rush=true
  ibridgemsg %[1]s orders api place_order --output yaml
  ibridgemsg %[1]s orders api place_order --publish --transport nats`, kind),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMessage(cmd, kind, args)
		},
	}

	c.Flags().StringArray("arg", nil, "positional argument (repeatable)")
	c.Flags().StringArray("kwarg", nil, "keyword argument as key=value (repeatable)")
	c.Flags().StringArray("option", nil, "envelope option as key=value (repeatable)")
	c.Flags().Bool("publish", false, "publish the envelope through the configured transport")
	c.Flags().StringP("output", "o", "wire", "output format: wire, json, yaml")
	return c
}

func init() {
	rootCmd.AddCommand(commandCmd)
	rootCmd.AddCommand(eventCmd)
}

func runMessage(cmd *cobra.Command, kind envelope.Kind, args []string) error {
	env, err := buildEnvelope(cmd, kind, args)
	if err != nil {
		return err
	}

	publish, _ := cmd.Flags().GetBool("publish")
	if publish {
		return publishEnvelope(cmd, env)
	}

	format, _ := cmd.Flags().GetString("output")
	return printEnvelope(env, format)
}

func buildEnvelope(cmd *cobra.Command, kind envelope.Kind, args []string) (*envelope.Envelope, error) {
	rawArgs, _ := cmd.Flags().GetStringArray("arg")
	rawKwargs, _ := cmd.Flags().GetStringArray("kwarg")
	rawOptions, _ := cmd.Flags().GetStringArray("option")

	var params envelope.Params
	for _, raw := range rawArgs {
		params.Args = append(params.Args, parseValue(raw))
	}

	kwargs, err := parseAssignments("kwarg", rawKwargs)
	if err != nil {
		return nil, err
	}
	params.Kwargs = kwargs

	options, err := parseAssignments("option", rawOptions)
	if err != nil {
		return nil, err
	}

	var env *envelope.Envelope
	if kind == envelope.KindEvent {
		env = envelope.CreateEvent(args[0], args[1], args[2], params)
	} else {
		env = envelope.CreateCommand(args[0], args[1], args[2], params)
	}
	env.SetOptions(options)

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

func publishEnvelope(cmd *cobra.Command, env *envelope.Envelope) error {
	sess, err := openTransport(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := []bridge.Option{bridge.WithLogger(logger)}
	if key := sess.cfg.Transport.SigningKey; key != "" {
		opts = append(opts, bridge.WithSigner(signing.NewSigner(key)))
	}

	notifier := bridge.NewNotifier(sess.client, sess.cfg.Transport.Channel, opts...)
	if err := notifier.Notify(sess.ctx, env); err != nil {
		return err
	}

	logger.Info("envelope published",
		logging.MessageID(env.ID()),
		logging.Transport(sess.cfg.Transport.Type),
		logging.Channel(notifier.Channel()))
	output.Success("Published %s %s to %s (%s)", env.Kind(), env.Name(), notifier.Channel(), env.ID())
	return nil
}

func printEnvelope(env *envelope.Envelope, format string) error {
	switch format {
	case "wire", "":
		wire, err := env.Encode()
		if err != nil {
			return err
		}
		metrics.RecordEncoded(env.Kind().String(), len(wire))
		output.Plain("%s", wire)
		return nil

	case "json":
		payload, err := env.JSON()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload, "", "  "); err != nil {
			return err
		}
		output.Plain("%s", buf.String())
		return nil

	case "yaml":
		payload, err := env.JSON()
		if err != nil {
			return err
		}
		// JSON is valid YAML; decoding into a node keeps the wire key order.
		var doc yaml.Node
		if err := yaml.Unmarshal(payload, &doc); err != nil {
			return err
		}
		blockStyle(&doc)
		return output.YAML(&doc)

	default:
		return fmt.Errorf("unsupported output format %q (use wire, json or yaml)", format)
	}
}

// blockStyle drops the flow and quoting styles carried over from JSON.
// The encoder still quotes strings that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// parseValue decodes raw as a single JSON value, falling back to the raw
// string. Numbers stay json.Number so large integers keep every digit.
func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if _, err := dec.Token(); err != io.EOF {
		return raw
	}
	return v
}

func parseAssignments(flag string, values []string) (map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}

	out := make(map[string]any, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --%s %q: expected key=value", flag, kv)
		}
		out[key] = parseValue(value)
	}
	return out, nil
}
