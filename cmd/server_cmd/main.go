package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/crossflow-io/settle-go/cmd"
	"github.com/crossflow-io/settle-go/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "SETTLE_CONFIG"
)

func main() {
	logconfig.ConfigProductionLogger()

	// Tool to read environment variables
	viper.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Settlement server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Settlement server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	esc := PrepareEngineServerConfig()
	if esc == nil {
		fmt.Printf("Error loading settlement server configuration\n")
		return
	}

	fmt.Println("Starting settlement server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartEngineServerAndWait(esc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareEngineServerConfig reads configuration variables and returns an EngineServerConfig.
func PrepareEngineServerConfig() *cmd.EngineServerConfig {
	viper.SetDefault("FEE_BPS", 30)
	viper.SetDefault("CANCELLATION_WINDOW", 3600)
	viper.SetDefault("UPGRADE_DELAY", 86400)
	viper.SetDefault("HTTP_IP", "0.0.0.0")
	viper.SetDefault("HTTP_PORT", "8080")

	return &cmd.EngineServerConfig{
		// ledger side
		ChainId:            viper.GetString("CHAIN_ID"),
		FeeBps:             viper.GetUint64("FEE_BPS"),
		CancellationWindow: viper.GetUint64("CANCELLATION_WINDOW"),
		Version:            viper.GetString("PROTOCOL_VERSION"),
		AdminAddr:          viper.GetString("ADMIN_ADDR"),
		CustodyAddr:        viper.GetString("CUSTODY_ADDR"),
		// committee side
		SwapPubKeyX:    viper.GetString("SWAP_PUBKEY_X"),
		UpgradePubKeyX: viper.GetString("UPGRADE_PUBKEY_X"),
		UpgradeDelay:   viper.GetUint64("UPGRADE_DELAY"),
		// state side
		DbFilePath: viper.GetString("DB_FILE_PATH"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}
