package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"go-ip-router/internal/router"
	"go-ip-router/internal/transport"
)

func startInteractiveShell() {
	// Liner is used for command history and other interactive CLI features
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	historyFile := os.Getenv("HOME") + "/.go-ip-router_history"
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("Router %s ready\n", currentRouter.Name())
	fmt.Printf("Type 'help' for available commands or 'exit' to quit.\n\n")

	for {
		prompt := fmt.Sprintf("%s> ", currentRouter.Name())
		input, err := line.Prompt(prompt)

		if err != nil {
			// Handle Ctrl+C or EOF
			if err == liner.ErrPromptAborted {
				fmt.Println("\nUse 'exit' to quit")
				continue
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			break
		}

		executeCommand(input)
	}

	if f, err := os.Create(historyFile); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

// newShellCommand builds the command tree for one shell line
func newShellCommand(r *router.Router, tr *transport.Transport) *cobra.Command {
	root := &cobra.Command{
		Use:           "router",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(os.Stdout)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show commands",
	}
	showCmd.AddCommand(
		&cobra.Command{
			Use:   "interfaces",
			Short: "Show interface list",
			Run: func(cmd *cobra.Command, args []string) {
				r.DumpInterfaces(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "routes",
			Short: "Show routing table",
			Run: func(cmd *cobra.Command, args []string) {
				r.DumpRoutingTable(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "arp",
			Short: "Show ARP cache",
			Run: func(cmd *cobra.Command, args []string) {
				r.DumpArpCache(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "pending",
			Short: "Show unresolved ARP requests",
			Run: func(cmd *cobra.Command, args []string) {
				r.DumpPending(cmd.OutOrStdout())
			},
		},
	)

	lookupCmd := &cobra.Command{
		Use:   "lookup [ip-address]",
		Short: "Show the route selected for an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, err := router.IPStringToUint32(args[0])
			if err != nil {
				return err
			}
			route := r.LookupRoute(ip)
			if route == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no route\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], route.String())
			return nil
		},
	}

	linkCmd := &cobra.Command{
		Use:   "link [interface] [peer-address] [peer-interface]",
		Short: "Attach an interface to a peer UDP endpoint",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			found := false
			for _, intf := range r.Interfaces() {
				if intf.Name == args[0] {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("interface '%s' not found", args[0])
			}

			peer, err := transport.ParsePeer(args[1], args[2])
			if err != nil {
				return err
			}
			tr.SetPeer(args[0], peer)
			fmt.Fprintf(cmd.OutOrStdout(), "%s linked to %s\n", args[0], peer)
			return nil
		},
	}

	helpCmd := &cobra.Command{
		Use:   "help",
		Short: "Help about any command",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Available commands:")
			fmt.Fprintln(out, "  show interfaces                        - Display the interface list")
			fmt.Fprintln(out, "  show routes                            - Display the routing table")
			fmt.Fprintln(out, "  show arp                               - Display the ARP cache")
			fmt.Fprintln(out, "  show pending                           - Display unresolved ARP requests")
			fmt.Fprintln(out, "  lookup <ip-addr>                       - Show the route chosen for an address")
			fmt.Fprintln(out, "  link <intf> <host:port> <peer-intf>    - Attach an interface to a peer")
			fmt.Fprintln(out, "  help                                   - Show this help message")
			fmt.Fprintln(out, "  exit                                   - Exit the shell")
		},
	}

	root.AddCommand(showCmd, lookupCmd, linkCmd)
	root.SetHelpCommand(helpCmd)
	return root
}

func executeCommand(input string) {
	args := strings.Fields(input)
	if len(args) == 0 {
		return
	}

	cmd := newShellCommand(currentRouter, currentTransport)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}
