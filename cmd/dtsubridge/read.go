// cmd/dtsubridge/read.go
package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/poller"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

func runRead(ctx context.Context, c *config.Config, out io.Writer, log zerolog.Logger) error {
	link := upstream.Build(c.Upstream, log)
	defer link.Close()

	if err := link.Open(); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	p, err := poller.Build("read", time.Second, c.Bridge.MaxBlockWords, link)
	if err != nil {
		return err
	}

	res := p.PollOnce(ctx)
	renderReadings(out, res)

	if len(res.Readings) == 0 {
		return fmt.Errorf("no measurement could be read: %w", res.Err())
	}
	return nil
}

func renderReadings(out io.Writer, res poller.PollResult) {
	readings := append([]poller.Reading(nil), res.Readings...)
	sort.Slice(readings, func(i, j int) bool { return readings[i].Spec.Address < readings[j].Spec.Address })

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Measurement", "Address", "Value", "Raw"})

	for _, r := range readings {
		t.AppendRow(table.Row{
			r.Spec.Name,
			fmt.Sprintf("0x%04X", r.Spec.Address),
			fmt.Sprintf("%.3f", r.Value),
			fmt.Sprintf("%04X %04X", r.Words[0], r.Words[1]),
		})
	}
	for _, f := range res.Failed {
		t.AppendRow(table.Row{
			fmt.Sprintf("block of %d", f.Block.Quantity),
			fmt.Sprintf("0x%04X", f.Block.Address),
			"error",
			f.Err.Error(),
		})
	}

	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok", len(readings)), fmt.Sprintf("%d failed", len(res.Failed))})
	t.Render()
}
