package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/alfredjeanlab/statusd/internal/client"
	"github.com/alfredjeanlab/statusd/internal/codec"
	"github.com/alfredjeanlab/statusd/internal/events"
	"github.com/alfredjeanlab/statusd/internal/model"
	"github.com/alfredjeanlab/statusd/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic...]",
	Short: "Print live bus events",
	Long: `Print live bus events. With no arguments every topic is shown.

Events are read from the NATS mirror when STATUSD_NATS_URL is set, and from
the daemon's HTTP event stream (GET /v1/events/stream) otherwise. HTTP topic
arguments may be globs such as "hw_*".`,
	GroupID: "client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if cfg.NATSURL == "" {
			if httpURL == "" {
				return fmt.Errorf("neither STATUSD_NATS_URL nor an HTTP address is configured")
			}
			c := client.NewHTTPClient(httpURL, cfg.AuthToken)
			return c.Stream(ctx, args, func(e client.StreamEvent) error {
				printDecoded(os.Stdout, e.Topic, e.Event)
				return nil
			})
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL, cfg.NATSSubjectPrefix,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "NATS disconnected: %v\n", err)
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				fmt.Fprintln(os.Stderr, "NATS reconnected")
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		return watchTopics(ctx, sub, cfg.NATSSubjectPrefix, args, os.Stdout)
	},
}

func watchTopics(ctx context.Context, sub events.Subscriber, prefix string, topics []string, w io.Writer) error {
	patterns := []string{events.Subject(prefix, ">")}
	if len(topics) > 0 {
		patterns = patterns[:0]
		for _, t := range topics {
			patterns = append(patterns, events.Subject(prefix, t))
		}
	}

	merged := make(chan events.Message, 64)
	for _, p := range patterns {
		ch, cancel, err := sub.Subscribe(p)
		if err != nil {
			return err
		}
		defer cancel()
		go func() {
			for msg := range ch {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-merged:
			printEvent(w, msg)
		}
	}
}

func printEvent(w io.Writer, msg events.Message) {
	e, err := codec.Decode(msg.Payload)
	if err != nil {
		fmt.Fprintf(w, "%s %s\n", ui.RenderMuted(msg.Topic), ui.RenderMuted("undecodable: "+err.Error()))
		return
	}
	printDecoded(w, msg.Topic, e)
}

func printDecoded(w io.Writer, topic string, e *model.Event) {
	if jsonOutput {
		_ = printJSON(w, eventJSON(topic, e))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", ui.RenderMuted(topic), ui.RenderAccent(e.Title), formatFields(e))
}

func formatFields(e *model.Event) string {
	var parts []string
	if v, ok := e.Description(); ok {
		parts = append(parts, "description="+v)
	}
	if v, ok := e.CPU(); ok {
		parts = append(parts, fmt.Sprintf("cpu=%.1f%%", v))
	}
	if v, ok := e.Memory(); ok {
		parts = append(parts, fmt.Sprintf("memory=%.1f%%", v))
	}
	if v, ok := e.TimestampField(); ok {
		parts = append(parts, fmt.Sprintf("timestamp=%d", v))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func eventJSON(topic string, e *model.Event) map[string]any {
	return map[string]any{"topic": topic, "event": e}
}
