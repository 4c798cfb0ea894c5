package main

import (
	"fmt"
	"strings"

	"randomness-oracle-sol/internal/config"
	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	url        string
	owner      string
	programID  string
	verbose    bool
}

// cliContext 子命令共享的运行环境
type cliContext struct {
	client    ledger.Client
	programID types.Pubkey
	owner     soltypes.Account
	feePayer  soltypes.Account
	verbose   bool
}

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "oracle-cli",
		Short:         "Randomness oracle admin tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&gf.configFile, "config", "C", config.DefaultCliConfigPath(), "Configuration file to use")
	pf.StringVarP(&gf.url, "url", "u", "", "JSON RPC URL or moniker (mainnet-beta, testnet, devnet, localhost) [default: value from configuration file]")
	pf.StringVar(&gf.owner, "owner", "", "Keypair of the oracle authority [default: client keypair]")
	pf.StringVar(&gf.programID, "program-id", consts.RandomnessOracleProgramStr, "Randomness oracle program id")
	pf.BoolVarP(&gf.verbose, "verbose", "v", false, "Show additional information")

	cmd.AddCommand(
		newInitCmd(gf),
		newInfoCmd(gf),
	)
	return cmd
}

// load 按 命令行 > 配置文件 > 默认值 解析全局参数
func (gf *globalFlags) load() (*cliContext, error) {
	level := "info"
	if gf.verbose {
		level = "debug"
	}
	if err := logger.InitLogger(logger.LogOption{Format: "console", Level: level}); err != nil {
		return nil, err
	}

	cliCfg, err := config.LoadCliConfig(config.ExpandHome(gf.configFile))
	if err != nil {
		return nil, err
	}

	url := cliCfg.JsonRpcURL
	if gf.url != "" {
		url = normalizeURL(gf.url)
	}

	programID, err := types.TryPubkeyFromBase58(gf.programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}

	feePayer, err := config.LoadKeypair(cliCfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("fee_payer: %w", err)
	}
	owner := feePayer
	if gf.owner != "" {
		owner, err = config.LoadKeypair(config.ExpandHome(gf.owner))
		if err != nil {
			return nil, fmt.Errorf("owner: %w", err)
		}
	}

	logger.Debugf("[CLI] rpc=%s program=%s fee_payer=%s", url, programID, feePayer.PublicKey.ToBase58())
	return &cliContext{
		client:    ledger.NewRpcClient(url),
		programID: programID,
		owner:     owner,
		feePayer:  feePayer,
		verbose:   gf.verbose,
	}, nil
}

var urlMonikers = map[string]string{
	"m":            "https://api.mainnet-beta.solana.com",
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
	"t":            "https://api.testnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
	"d":            "https://api.devnet.solana.com",
	"devnet":       "https://api.devnet.solana.com",
	"l":            "http://localhost:8899",
	"localhost":    "http://localhost:8899",
}

func normalizeURL(s string) string {
	if u, ok := urlMonikers[strings.ToLower(s)]; ok {
		return u
	}
	return s
}
