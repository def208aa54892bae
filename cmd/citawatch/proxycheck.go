package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/citawatch/internal/log"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/proxy"
)

// NewProxyCheckCmd creates the proxy-check command.
func NewProxyCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy-check",
		Short: "Health-check the default egress and the configured proxies",
		Long: `Proxy-check looks up the public IP address seen through the default
connection and through every configured proxy server (or the embedded Tor
daemon). SOCKS5 proxies are probed with a handshake first.

The command fails when any of them is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: runProxyCheckCmd,
	}
}

// runProxyCheckCmd executes the proxy-check command.
func runProxyCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, slog.LevelWarn)
	ctx := cmd.Context()

	descriptors := []*model.ProxyDescriptor{nil}
	pool, closer, err := newPool(cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	if pool != nil {
		n := 1
		if sp, ok := pool.(*proxy.StaticPool); ok {
			n = sp.Size()
		}
		for range n {
			d, err := pool.Next(ctx)
			if err != nil {
				return fmt.Errorf("proxy pool: %w", err)
			}
			descriptors = append(descriptors, d)
		}
	}

	results := checkAll(ctx, newChecker(cfg, logger), descriptors)
	t := newTable(cmd)
	unhealthy := renderHealth(t, results)
	t.Render()

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d egress paths unhealthy", unhealthy, len(results))
	}
	return nil
}

// checkAll checks every descriptor in order. A nil descriptor is the
// default egress.
func checkAll(ctx context.Context, c *proxy.Checker, descriptors []*model.ProxyDescriptor) []proxy.Health {
	results := make([]proxy.Health, 0, len(descriptors))
	for _, d := range descriptors {
		results = append(results, c.Check(ctx, d))
	}
	return results
}

// renderHealth appends one row per result and returns the unhealthy count.
func renderHealth(t table.Writer, results []proxy.Health) int {
	t.AppendHeader(table.Row{"Egress", "SOCKS5", "Public IP", "Latency", "Status"})
	unhealthy := 0
	for _, h := range results {
		socks := "-"
		if h.SOCKS != nil {
			socks = h.SOCKS.String()
		}
		ip := h.PublicIP
		if ip == "" {
			ip = "-"
		}
		status := "ok"
		if !h.Healthy() {
			status = log.Scrub(h.Err.Error())
			unhealthy++
		}
		t.AppendRow(table.Row{h.Proxy, socks, ip, h.Latency.Round(time.Millisecond).String(), status})
	}
	return unhealthy
}
