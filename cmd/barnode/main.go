// Command barnode starts a barchain node: a small Proof-of-Authority chain
// whose built-in contracts run a token-gated bar counter.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/krugbar/barchain/config"
	"github.com/krugbar/barchain/consensus"
	"github.com/krugbar/barchain/core"
	"github.com/krugbar/barchain/crypto/certgen"
	"github.com/krugbar/barchain/events"
	"github.com/krugbar/barchain/indexer"
	"github.com/krugbar/barchain/network"
	"github.com/krugbar/barchain/rpc"
	"github.com/krugbar/barchain/storage"
	"github.com/krugbar/barchain/vm"
	"github.com/krugbar/barchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/krugbar/barchain/vm/modules/bar"
	_ "github.com/krugbar/barchain/vm/modules/token"
)

var (
	cfgPath string
	keyPath string
)

func main() {
	root := &cobra.Command{
		Use:           "barnode",
		Short:         "barchain node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to config file")
	root.PersistentFlags().StringVar(&keyPath, "key", "validator.key", "path to keystore file")

	root.AddCommand(runCmd(), genKeyCmd(), genCertsCmd())

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// password reads the keystore password from the environment
// (not CLI flags — they leak via ps).
func password() string {
	pw := os.Getenv("BARCHAIN_PASSWORD")
	if pw == "" {
		logrus.Warn("BARCHAIN_PASSWORD not set, keystore will use an empty password")
	}
	return pw
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("path", path).Info("config file not found, using defaults")
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func genKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "generate a new validator key and save it to the keystore",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(keyPath, password(), w.PrivKey()); err != nil {
				return err
			}
			fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
			fmt.Printf("Saved to: %s\n", keyPath)
			return nil
		},
	}
}

func genCertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gencerts <dir>",
		Short: "generate CA + node TLS certificates into the given directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := certgen.GenerateAll(args[0], cfg.NodeID, nil); err != nil {
				return err
			}
			fmt.Printf("Certificates generated in %s for node %q\n", args[0], cfg.NodeID)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
}

func runNode() error {
	log := logrus.WithField("component", "node")

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	privKey, err := wallet.LoadKey(keyPath, password())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// State and blocks share one DB under distinct key prefixes.
	state := storage.NewStateDB(db)
	blockStore := storage.NewLevelBlockStore(db)

	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// Fresh chain: build and commit the genesis block, deploying the token
	// ledger and the bar contract.
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.WithField("hash", genesisBlock.Hash).Info("genesis block committed")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)

	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, emitter)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Info("mTLS enabled for P2P")
	}

	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer node.Stop()
	log.WithField("addr", p2pAddr).Info("p2p listening")

	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"peer": sp.ID, "addr": sp.Addr}).Warn("seed peer")
			continue
		}
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.WithFields(logrus.Fields{"peer": sp.ID, "addr": sp.Addr}).Info("connected to seed peer")
	}

	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, emitter)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.WithField("addr", rpcAddr).Info("rpc listening")
	if cfg.RPCAuthToken != "" {
		log.Info("rpc bearer token authentication enabled")
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(2*time.Second, done)
	}()
	log.WithField("validator", privKey.Public().Hex()).Info("consensus running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	// Stop consensus first so no new blocks are written, then the deferred
	// calls run in LIFO order: rpcServer.Stop, node.Stop, db.Close.
	close(done)
	wg.Wait()
	log.Info("shutdown complete")
	return nil
}
