package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"

	"github.com/ghl-platform/realtime-delivery-service/internal/domain/model"
)

func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"m"},
		Usage:   "Live terminal dashboard over a running node's admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Admin API base address",
				Value: "http://localhost:8086",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Poll interval",
				Value: time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.String("addr"), c.Duration("interval"))
		},
	}
}

func runMonitor(addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = "Delivery Runtime"
	summary.SetRect(0, 0, 60, 8)

	targetGauge := widgets.NewGauge()
	targetGauge.Title = "Latency Target Met"
	targetGauge.SetRect(60, 0, 100, 4)

	trend := widgets.NewParagraph()
	trend.Title = "Trend"
	trend.SetRect(60, 4, 100, 8)

	laneChart := widgets.NewBarChart()
	laneChart.Title = "Lane Depth"
	laneChart.SetRect(0, 8, 60, 18)
	laneChart.BarWidth = 9

	throughput := widgets.NewSparkline()
	throughputGroup := widgets.NewSparklineGroup(throughput)
	throughputGroup.Title = "Throughput (events/s)"
	throughputGroup.SetRect(60, 8, 100, 18)

	client := &http.Client{Timeout: interval}
	var history []float64

	refresh := func() {
		snap, err := fetchSnapshot(client, addr)
		if err != nil {
			summary.Text = fmt.Sprintf("poll failed: %v", err)
			ui.Render(summary)
			return
		}

		summary.Text = fmt.Sprintf(
			"Connections: %d\nPublished:   %d\nDelivered:   %d\nFailed:      %d\nThroughput:  %.1f/s (peak %.1f/s)\nP95/P99:     %s / %s",
			snap.Connections, snap.EventsPublished, snap.EventsDelivered, snap.FailedPublishes,
			snap.Throughput, snap.PeakThroughput,
			snap.Latency.P95, snap.Latency.P99,
		)
		targetGauge.Percent = int(snap.Latency.TargetMet)
		trend.Text = string(snap.Latency.Trend)

		names := make([]string, 0, len(snap.Lanes))
		for name := range snap.Lanes {
			names = append(names, name)
		}
		sort.Strings(names)
		laneChart.Labels = laneChart.Labels[:0]
		laneChart.Data = laneChart.Data[:0]
		for _, name := range names {
			laneChart.Labels = append(laneChart.Labels, name)
			laneChart.Data = append(laneChart.Data, float64(snap.Lanes[name].Depth))
		}

		history = append(history, snap.Throughput)
		if len(history) > 60 {
			history = history[1:]
		}
		throughput.Data = history

		ui.Render(summary, targetGauge, trend, laneChart, throughputGroup)
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case e := <-events:
			if e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>") {
				return nil
			}
			if e.Type == ui.ResizeEvent {
				ui.Clear()
				refresh()
			}
		case <-ticker.C:
			refresh()
		}
	}
}

func fetchSnapshot(client *http.Client, addr string) (*model.PerformanceSnapshot, error) {
	resp, err := client.Get(addr + "/admin/metrics")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("admin API returned %s", resp.Status)
	}

	snap := new(model.PerformanceSnapshot)
	if err := json.NewDecoder(resp.Body).Decode(snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
