package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-ip-router/internal/capture"
	"go-ip-router/internal/config"
	"go-ip-router/internal/logger"
	"go-ip-router/internal/router"
	"go-ip-router/internal/transport"
)

// Command line flags
var (
	configFile string
	rtableFile string
	pcapFile   string
	hostLinks  []string
	logLevel   string
	listenPort int
	noShell    bool
)

// Running instance, torn down by cleanup
var (
	currentRouter    *router.Router
	currentTransport *transport.Transport
	currentTap       *capture.Tap
)

var rootCmd = &cobra.Command{
	Use:          "router",
	Short:        "A software IPv4 router over emulated UDP links",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLogLevel(level)

		s, err := loadSetup(cmd)
		if err != nil {
			return err
		}
		if err := startRouter(s); err != nil {
			return err
		}

		if noShell {
			// The signal handler cleans up and exits
			select {}
		}
		startInteractiveShell()
		return nil
	},
}

// routerSetup is everything needed to bring a router up
type routerSetup struct {
	name    string
	port    int
	intfs   []router.Interface
	routes  *router.RoutingTable
	peers   map[string]transport.Peer
	arpOpts []router.ArpCacheOption
}

func loadSetup(cmd *cobra.Command) (*routerSetup, error) {
	s := &routerSetup{
		name:  "router",
		peers: make(map[string]transport.Peer),
	}

	switch {
	case configFile != "":
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		s.name = cfg.Router.Name
		s.port = cfg.Transport.ListenPort
		s.arpOpts = cfg.ArpCacheOptions()

		if s.intfs, err = cfg.BuildInterfaces(); err != nil {
			return nil, err
		}
		if s.routes, err = cfg.BuildRoutingTable(); err != nil {
			return nil, err
		}
		for _, intf := range cfg.Interfaces {
			if intf.Peer.Address == "" {
				continue
			}
			peer, err := transport.ParsePeer(intf.Peer.Address, intf.Peer.Interface)
			if err != nil {
				return nil, fmt.Errorf("interface %s: %w", intf.Name, err)
			}
			s.peers[intf.Name] = peer
		}

	case len(hostLinks) > 0:
		intfs, routes, err := config.FromHost(hostLinks)
		if err != nil {
			return nil, err
		}
		s.intfs, s.routes = intfs, routes

	default:
		return nil, fmt.Errorf("either --config or --from-host is required")
	}

	if rtableFile != "" {
		routes, err := config.LoadRoutingTable(rtableFile)
		if err != nil {
			return nil, err
		}
		s.routes = routes
	}

	if cmd.Flags().Changed("port") {
		s.port = listenPort
	}

	return s, nil
}

func startRouter(s *routerSetup) error {
	tr, err := transport.New(s.name, s.port, s.peers)
	if err != nil {
		return err
	}
	currentTransport = tr

	var tx router.Transmitter = tr
	if pcapFile != "" {
		tap, err := capture.OpenTap(pcapFile, tr)
		if err != nil {
			return err
		}
		currentTap = tap
		tx = tap
	}

	r, err := router.New(s.intfs, s.routes, tx,
		router.WithName(s.name),
		router.WithArpCache(router.NewArpCache(s.arpOpts...)))
	if err != nil {
		return err
	}
	currentRouter = r

	handler := r.HandleFrame
	if currentTap != nil {
		handler = currentTap.Handler(handler)
	}

	go func() {
		if err := tr.Serve(handler); err != nil {
			logger.Error("%v", err)
		}
	}()
	r.Start()

	logger.Info("Router %s up: %d interfaces, %d routes, port %d",
		s.name, len(s.intfs), s.routes.Len(), tr.Port())
	return nil
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "router YAML file")
	flags.StringVarP(&rtableFile, "rtable", "r", "", "routing table file (destination gateway mask interface)")
	flags.StringVar(&pcapFile, "pcap", "", "write every frame sent and received to this pcap file")
	flags.StringSliceVar(&hostLinks, "from-host", nil, "import interfaces and routes from these host links")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.IntVarP(&listenPort, "port", "p", 0, "UDP port to listen on (overrides the config)")
	flags.BoolVar(&noShell, "no-shell", false, "run without the interactive shell until interrupted")
}

func main() {
	// signal handling for cleanup
	setupSignalHandler()

	if err := rootCmd.Execute(); err != nil {
		cleanup()
		os.Exit(1)
	}

	cleanup()
}

// graceful shutdown on SIGINT/SIGTERM
func setupSignalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal. Cleaning up...")
		cleanup()
		os.Exit(0)
	}()
}

// cleanup operations before exit
func cleanup() {
	if currentRouter != nil {
		currentRouter.Stop()
	}
	if currentTransport != nil {
		if err := currentTransport.Close(); err != nil {
			logger.Error("%v", err)
		}
	}
	if currentTap != nil {
		if err := currentTap.Close(); err != nil {
			logger.Error("PCAP: %v", err)
		}
	}
}
