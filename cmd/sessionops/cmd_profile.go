package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"sessionops/internal/profile"
)

var (
	profileOS      string
	profileBrowser string
	profileName    string
	profileDir     string
	pivotHost      string
	proxyPort      int
	debugPort      int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Browser profile locations and replay snippets",
}

var profilePathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show where a browser keeps its profile files",
	RunE:  runProfilePaths,
}

var profileProxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Snippets for routing a browser through a SOCKS5 pivot",
	RunE:  runProfileProxy,
}

var profileLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Commands that launch a browser on a copied profile",
	RunE:  runProfileLaunch,
}

var profileCDPURLsCmd = &cobra.Command{
	Use:   "cdp-urls",
	Short: "DevTools URLs for a forwarded debugger port",
	RunE:  runProfileCDPURLs,
}

func init() {
	profilePathsCmd.Flags().StringVar(&profileOS, "os", "windows", "Target OS (windows, linux)")
	profilePathsCmd.Flags().StringVarP(&profileBrowser, "browser", "b", string(profile.Chrome), "Browser")
	profilePathsCmd.Flags().StringVar(&profileName, "profile", "", "Profile name (Default when empty)")

	profileLaunchCmd.Flags().StringVarP(&profileBrowser, "browser", "b", string(profile.Chrome), "Browser")
	profileLaunchCmd.Flags().StringVar(&profileDir, "profile-dir", "./stolen-profile", "Copied profile directory")

	for _, c := range []*cobra.Command{profileProxyCmd, profileCDPURLsCmd} {
		c.Flags().StringVar(&pivotHost, "host", "127.0.0.1", "Pivot host")
	}
	profileProxyCmd.Flags().IntVarP(&proxyPort, "port", "p", 1080, "SOCKS5 port")
	profileCDPURLsCmd.Flags().IntVarP(&debugPort, "port", "p", 9222, "Debugger port")

	profileCmd.AddCommand(profilePathsCmd)
	profileCmd.AddCommand(profileProxyCmd)
	profileCmd.AddCommand(profileLaunchCmd)
	profileCmd.AddCommand(profileCDPURLsCmd)
}

func runProfilePaths(cmd *cobra.Command, args []string) error {
	goos := profile.NormalizeOS(profileOS)
	b := profile.Browser(profileBrowser)
	paths, ok := profile.Lookup(goos, b)
	if !ok {
		return fmt.Errorf("no profile layout for %s on %s", b, goos)
	}
	files := profile.Files(goos, b, profileName)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{"paths": paths, "files": files})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", headerStyle.Render("profile base"), paths.ProfileBase)
	for _, exe := range paths.Executables {
		fmt.Fprintf(out, "%s %s\n", headerStyle.Render("executable  "), exe)
	}
	for _, f := range files {
		fmt.Fprintf(out, "  %-14s %s\n", f.Name, f.BasePath)
	}
	return nil
}

func runProfileProxy(cmd *cobra.Command, args []string) error {
	pc := profile.ProxyConfigs(pivotHost, proxyPort)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), pc)
	}
	out := cmd.OutOrStdout()
	section(out, "PAC", pc.PAC)
	section(out, "Chrome", pc.BrowserLaunchCmd)
	section(out, "FoxyProxy", pc.FoxyProxyConfig)
	section(out, "curl", pc.CurlExample)
	return nil
}

func runProfileLaunch(cmd *cobra.Command, args []string) error {
	cmds := profile.LaunchCommands(profile.Browser(profileBrowser), profileDir)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), cmds)
	}
	keys := make([]string, 0, len(cmds))
	for k := range cmds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		section(cmd.OutOrStdout(), k, cmds[k])
	}
	return nil
}

func runProfileCDPURLs(cmd *cobra.Command, args []string) error {
	urls := profile.DebuggerURLs(pivotHost, debugPort)
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), urls)
	}
	out := cmd.OutOrStdout()
	section(out, "local", urls.LocalURL)
	section(out, "devtools", urls.DevtoolsFrontend)
	section(out, "websocket", urls.WebSocketDebugURL)
	section(out, "json", urls.JSONURL)
	return nil
}
