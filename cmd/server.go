// Server = settlement engine + upgrade controller + registry + http reporter.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"

	"github.com/crossflow-io/settle-go/agreement"
	"github.com/crossflow-io/settle-go/hookgw"
	"github.com/crossflow-io/settle-go/registry"
	"github.com/crossflow-io/settle-go/reporter"
	"github.com/crossflow-io/settle-go/settle"
	"github.com/crossflow-io/settle-go/sigverify"
	"github.com/crossflow-io/settle-go/upgrade"
	"github.com/crossflow-io/settle-go/vault"
)

// Default params for server.
// More often we don't recommend users to tweak those.
// So we list them here.
const (
	// per-hook gas ceiling of the in-process gateway
	defaultMaxHookGas = 500_000

	// event subscription channel size
	CHANNEL_BUFFER_SIZE = 64
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type EngineServerConfig struct {
	// ledger side
	ChainId            string // decimal chain id of this ledger instance
	FeeBps             uint64 // verification fee rate in basis points
	CancellationWindow uint64 // seconds between staging and refund
	Version            string // reported protocol version
	AdminAddr          string // admin account, hex
	CustodyAddr        string // custody account, hex

	// committee side
	SwapPubKeyX    string // x-only schnorr key gating solver repayments, hex
	UpgradePubKeyX string // x-only schnorr key gating upgrades, hex
	UpgradeDelay   uint64 // minimum seconds between schedule and execute

	// state side
	DbFilePath string // db file path

	// Http side
	HttpIp   string // eg. 0.0.0.0
	HttpPort string // eg. 8080
}

// EngineServer holds the objects that consists of the settlement server.
type EngineServer struct {
	MyRegistry   *registry.RegistryDB
	MyVault      *vault.SimVault
	MyPermits    *vault.PermitVault
	MyGateway    *hookgw.CallGateway
	MyEngine     *settle.Engine
	MyController *upgrade.Controller
}

// NewEngineServer creates a new settlement server.
// ctx is used for parental context to cancel the operation of the server.
// wg is used to wait for the goroutines inside the server to finish.
func NewEngineServer(esc *EngineServerConfig, ctx context.Context, wg *sync.WaitGroup) (*EngineServer, error) {
	chainId, ok := new(big.Int).SetString(esc.ChainId, 10)
	if !ok {
		logger.Fatalf("invalid chain id: %s", esc.ChainId)
		return nil, os.ErrInvalid
	}

	swapKey, err := ParsePubKeyX(esc.SwapPubKeyX)
	if err != nil {
		logger.Fatalf("invalid swap committee key: %v", err)
		return nil, err
	}
	upgradeKey, err := ParsePubKeyX(esc.UpgradePubKeyX)
	if err != nil {
		logger.Fatalf("invalid upgrade committee key: %v", err)
		return nil, err
	}

	// registry over sqlite
	myRegistry, err := registry.NewRegistryDB("sqlite3", esc.DbFilePath)
	if err != nil {
		logger.Fatalf("failed to open registry db: %v", err)
		return nil, err
	}

	// the custody ledger and its permit relay
	myVault := vault.NewSimVault()
	myPermits := vault.NewPermitVault(myVault)

	// swap committee verifier
	swapVerifier := sigverify.NewSchnorrVerifier(swapKey, sigverify.DomainSwap)

	myEngine, err := settle.New(&settle.Config{
		ChainId:            chainId,
		FeeBps:             esc.FeeBps,
		CancellationWindow: esc.CancellationWindow,
		Version:            esc.Version,
		Admin:              ethcommon.HexToAddress(esc.AdminAddr),
		Custody:            ethcommon.HexToAddress(esc.CustodyAddr),
		JournalBuffer:      CHANNEL_BUFFER_SIZE,
	}, myRegistry, myVault, swapVerifier, agreement.SystemClock{})
	if err != nil {
		logger.Fatalf("failed to create settlement engine: %v", err)
		return nil, err
	}
	myEngine.SetPermitRelay(myPermits)

	// hook gateway
	myGateway := hookgw.NewCallGateway(defaultMaxHookGas)
	if err := myEngine.SetHookGateway(ethcommon.HexToAddress(esc.AdminAddr), myGateway); err != nil {
		logger.Fatalf("failed to configure hook gateway: %v", err)
		return nil, err
	}

	// upgrade controller over its own committee key
	upgradeVerifier := sigverify.NewSchnorrVerifier(upgradeKey, sigverify.DomainUpgrade)
	myController := upgrade.NewController(myEngine, upgradeVerifier, agreement.SystemClock{}, myRegistry, esc.UpgradeDelay)

	// drain the event feed into the log
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-myEngine.Events():
				logger.WithFields(logger.Fields{
					"seq":  ev.Seq,
					"kind": string(ev.Kind),
				}).Info("journal event")
			}
		}
	}()

	// *** Setup a http server to report status ***
	http_server := reporter.NewHttpReporter(
		esc.HttpIp,
		esc.HttpPort,
		myEngine,
	)
	// Turn on the http server
	go http_server.Run()

	// Give it some time to start the http server
	time.Sleep(1 * time.Second)
	// *** End the setup of http server ***

	return &EngineServer{
		MyRegistry:   myRegistry,
		MyVault:      myVault,
		MyPermits:    myPermits,
		MyGateway:    myGateway,
		MyEngine:     myEngine,
		MyController: myController,
	}, nil
}

// Create, then start the settlement server and wait.
// Press Ctrl-C to kill the server.
func StartEngineServerAndWait(esc *EngineServerConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("received signal: %v, cancelling context...", sig)
		cancel()
	}()

	var wg sync.WaitGroup

	server, err := NewEngineServer(esc, ctx, &wg)
	if err != nil {
		logger.Fatalf("failed to create settlement server: %v", err)
		return
	}
	defer server.MyRegistry.Close()

	// wait for all routines to finish
	wg.Wait()
}
