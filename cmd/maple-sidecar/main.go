package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via -ldflags.
var Version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version":
			fmt.Printf("maple-sidecar %s\n", Version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		case "run":
			if err := runSidecar(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		if !strings.HasPrefix(os.Args[1], "-") {
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	// Bare invocation or flags only: same as the run subcommand.
	if err := runSidecar(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("maple-sidecar - downloads, verifies and supervises the maple-proxy binary")
	fmt.Println()
	fmt.Println("Usage: maple-sidecar [run] [options]")
	fmt.Println("       maple-sidecar version")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -config <path>         TOML config file")
	fmt.Println("  -port <port>           loopback port for maple-proxy (default 8080)")
	fmt.Println("  -proxy-version <tag>   pin a maple-proxy release tag")
	fmt.Println("  -backend-url <url>     override the proxy upstream")
	fmt.Println("  -cache-dir <path>      binary install directory")
	fmt.Println("  -keyring <path>        GPG keyring for release signature checks")
	fmt.Println("  -debug                 verbose logging")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  MAPLE_API_KEY          API key handed to maple-proxy (required)")
	fmt.Println("  MAPLE_PORT, MAPLE_BACKEND_URL, MAPLE_PROXY_VERSION, MAPLE_DEBUG")
}
