package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionops/internal/cdp"
	"sessionops/internal/cookie"
)

var (
	cdpHost      string
	cdpPort      int
	cdpFromStore bool
	cdpDomain    string
)

var cdpCmd = &cobra.Command{
	Use:   "cdp",
	Short: "Talk to a forwarded Chrome DevTools endpoint",
	Long: `Commands against a debugger port forwarded to this machine. Hosts outside
cdp.allowed_hosts (loopback by default) are refused.`,
}

var cdpTargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List debugger targets",
	RunE:  runCDPTargets,
}

var cdpInjectCmd = &cobra.Command{
	Use:   "inject [cookies.json...]",
	Short: "Set cookies in the remote browser",
	RunE:  runCDPInject,
}

func init() {
	for _, c := range []*cobra.Command{cdpTargetsCmd, cdpInjectCmd} {
		c.Flags().StringVar(&cdpHost, "host", "127.0.0.1", "Debugger host")
		c.Flags().IntVarP(&cdpPort, "port", "p", 9222, "Debugger port")
	}
	cdpInjectCmd.Flags().BoolVar(&cdpFromStore, "from-store", false, "Inject cookies from the capture store")
	cdpInjectCmd.Flags().StringVarP(&cdpDomain, "domain", "d", "", "Only cookies whose domain contains this")

	cdpCmd.AddCommand(cdpTargetsCmd)
	cdpCmd.AddCommand(cdpInjectCmd)
}

func cdpPortOrDefault() int {
	if cdpPort > 0 {
		return cdpPort
	}
	return cfg.CDP.DefaultPort
}

func runCDPTargets(cmd *cobra.Command, args []string) error {
	if err := cdp.ValidateHost(cdpHost, cfg.CDP.AllowedHosts); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := cdp.NewClient(cfg.CDPOptions()...)
	targets := client.ListTargets(ctx, cdpHost, cdpPortOrDefault())
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), targets)
	}
	renderTargets(cmd.OutOrStdout(), targets)
	return nil
}

func runCDPInject(cmd *cobra.Command, args []string) error {
	if err := cdp.ValidateHost(cdpHost, cfg.CDP.AllowedHosts); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cookies, err := loadCookies(ctx, cmd.InOrStdin(), args, cdpFromStore, cdpDomain)
	if err != nil {
		return err
	}
	if !cdpFromStore && cdpDomain != "" {
		cookies = cookie.FilterDomain(cookies, cdpDomain)
	}

	client := cdp.NewClient(cfg.CDPOptions()...)
	res := client.InjectCookies(ctx, cdpHost, cdpPortOrDefault(), cookies)
	logger.Info("CDP injection finished",
		zap.Int("injected", res.Injected),
		zap.Int("failed", res.Failed))

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	renderInject(cmd.OutOrStdout(), res)
	if res.Injected == 0 && res.Failed > 0 {
		return fmt.Errorf("no cookies injected into %s:%d", cdpHost, cdpPortOrDefault())
	}
	return nil
}
