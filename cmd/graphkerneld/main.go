// Package main provides the graphkerneld CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kerngraph/kerndb/pkg/config"
	"github.com/kerngraph/kerndb/pkg/lock"
	"github.com/kerngraph/kerndb/pkg/master"
	"github.com/kerngraph/kerndb/pkg/master/rpc"
	"github.com/kerngraph/kerndb/pkg/store"
	"github.com/kerngraph/kerndb/pkg/store/badgerstore"
	"github.com/kerngraph/kerndb/pkg/store/memstore"
	"github.com/kerngraph/kerndb/pkg/txn"
	"github.com/kerngraph/kerndb/pkg/walog"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphkerneld",
		Short: "graphkerneld - write-transaction engine for a graph store's master/slave cluster",
		Long: `graphkerneld runs the write-transaction engine described by the
neo store record model: a logical log of node/relationship/property
mutations, a doubly-linked relationship chain and singly-linked
property chain, and a master coordinator that brokers locks,
transactions, and ID allocation on behalf of replicas.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphkerneld v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the master coordinator and its replica RPC listener",
		RunE:  runServe,
	}
	serveCmd.Flags().String("data-dir", getEnvStr("GRAPHKERNEL_DATA_DIR", "./data"), "Data directory (badgerstore + logical log)")
	serveCmd.Flags().Bool("in-memory", getEnvBool("GRAPHKERNEL_IN_MEMORY", false), "Use an in-memory store instead of badgerstore")
	serveCmd.Flags().String("listen", getEnvStr("GRAPHKERNEL_LISTEN_ADDRESS", ""), "Replica RPC listen address (overrides config)")
	serveCmd.Flags().Int("machine-id", getEnvInt("GRAPHKERNEL_MACHINE_ID", 1), "This instance's machine ID, reported to replicas")
	rootCmd.AddCommand(serveCmd)

	recoverCmd := &cobra.Command{
		Use:   "recover",
		Short: "Replay the logical log against the store and exit",
		RunE:  runRecover,
	}
	recoverCmd.Flags().String("data-dir", getEnvStr("GRAPHKERNEL_DATA_DIR", "./data"), "Data directory (badgerstore + logical log)")
	rootCmd.AddCommand(recoverCmd)

	replicaCmd := &cobra.Command{
		Use:   "replica",
		Short: "Replica diagnostics against a running master",
	}
	replicaStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "List the master's ongoing slave transactions",
		RunE:  runReplicaStatus,
	}
	replicaStatusCmd.Flags().String("address", getEnvStr("GRAPHKERNEL_LISTEN_ADDRESS", "127.0.0.1:7690"), "Master replica RPC address")
	replicaStatusCmd.Flags().String("cluster-secret", getEnvStr("GRAPHKERNEL_CLUSTER_SECRET", ""), "Cluster secret the master authenticates replicas with (defaults to config.yaml's)")
	replicaCmd.AddCommand(replicaStatusCmd)
	rootCmd.AddCommand(replicaCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine builds the store, lock manager, logical log, and
// write-transaction engine a serve/recover invocation shares, applying
// the data-dir/in-memory flags over whatever config.yaml or the
// environment already set.
func openEngine(cmd *cobra.Command) (*config.Config, store.Store, *walog.Log, *txn.Engine, error) {
	cfg, err := config.LoadFromFile(config.FindConfigFile())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Store.DataDir = dataDir
	}
	if inMemory, _ := cmd.Flags().GetBool("in-memory"); inMemory {
		cfg.Store.InMemory = true
	}

	logger := walog.NewStdLogger()

	var (
		st  store.Store
		wlg *walog.Log
	)
	if cfg.Store.InMemory {
		st = memstore.New()
	} else {
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		bs, err := badgerstore.Open(cfg.Store.DataDir, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("opening badger store: %w", err)
		}
		st = bs

		wlg, err = walog.Open(cfg.Store.DataDir+"/kerndb.wal", logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("opening logical log: %w", err)
		}
	}

	locks := lock.NewInProcessManager()
	engine := txn.NewEngine(st, locks, wlg, nil, cfg.Store.PayloadCap)
	return cfg, st, wlg, engine, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, st, wlg, engine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := st.(interface{ Close() error }); ok {
			closer.Close()
		}
		if wlg != nil {
			wlg.Close()
		}
	}()

	if err := engine.Recover(0); err != nil {
		return fmt.Errorf("recovering logical log: %w", err)
	}

	listenAddr := cfg.Master.ListenAddress
	if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
		listenAddr = addr
	}
	machineID, _ := cmd.Flags().GetInt("machine-id")

	logger := walog.NewStdLogger()
	coord := master.NewCoordinator(engine, cfg.Reaper, int32(machineID), logger)
	defer coord.Shutdown()

	auth, err := master.NewAuthenticator(cfg.Master.ClusterSecret)
	if err != nil {
		return fmt.Errorf("initializing replica authenticator: %w", err)
	}
	server := rpc.NewServer(coord, logger).WithAuthenticator(auth)
	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- server.ListenAndServe(listenAddr)
	}()

	fmt.Printf("graphkerneld v%s\n", version)
	fmt.Printf("  data dir:      %s\n", cfg.Store.DataDir)
	fmt.Printf("  in-memory:     %v\n", cfg.Store.InMemory)
	fmt.Printf("  machine id:    %d\n", machineID)
	fmt.Printf("  replica RPC:   %s\n", listenAddr)
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("replica RPC server: %w", err)
		}
	case <-sigCh:
		fmt.Println("\nshutting down...")
	}

	if err := server.Close(); err != nil {
		fmt.Printf("warning: error stopping replica RPC server: %v\n", err)
	}
	fmt.Println("stopped")
	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	_, st, wlg, engine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := st.(interface{ Close() error }); ok {
			closer.Close()
		}
		if wlg != nil {
			wlg.Close()
		}
	}()

	if err := engine.Recover(0); err != nil {
		return fmt.Errorf("recovering logical log: %w", err)
	}
	fmt.Printf("recovered, last committed tx = %d\n", engine.LastCommittedTx())
	return nil
}

func runReplicaStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	secret, _ := cmd.Flags().GetString("cluster-secret")
	if secret == "" {
		cfg, err := config.LoadFromFile(config.FindConfigFile())
		if err != nil {
			return fmt.Errorf("loading cluster secret from config: %w", err)
		}
		secret = cfg.Master.ClusterSecret
	}

	client, err := rpc.DialAuthenticated(addr, secret)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer client.Close()

	reply, err := client.OngoingTransactions()
	if err != nil {
		return fmt.Errorf("ongoing transactions: %w", err)
	}
	if len(reply.Contexts) == 0 {
		fmt.Println("no ongoing slave transactions")
		return nil
	}
	for _, ctx := range reply.Contexts {
		fmt.Printf("session=%d machine=%d event=%d lastApplied=%v\n",
			ctx.SessionID, ctx.MachineID, ctx.EventID, ctx.LastAppliedTx)
	}
	return nil
}

func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultVal
	}
}
