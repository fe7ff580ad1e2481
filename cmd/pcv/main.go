package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openvault-labs/pcv/internal/capability"
	"github.com/openvault-labs/pcv/internal/config"
	"github.com/openvault-labs/pcv/internal/ledger"
	"github.com/openvault-labs/pcv/internal/logger"
	"github.com/openvault-labs/pcv/internal/state"
	"github.com/openvault-labs/pcv/internal/strategy"
	"github.com/openvault-labs/pcv/internal/types"
	"github.com/openvault-labs/pcv/internal/vault"
	"github.com/openvault-labs/pcv/internal/web"
)

const (
	vaultAccount       = types.Principal("vault:main")
	strategyAccount    = types.Principal("strategy:default")
	yieldAccount       = types.Principal("yield:default")
	defaultStrategyKey = "default"

	parametersConfigName = "default_vault"
)

// main is the entry point for the PCV service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("PCV Core Logic Starting...")

	// Initialize Database Connection (audit trail: receipts, snapshots, parameters)
	var recorder vault.Recorder
	if os.Getenv("DB_HOST") != "" {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		recorder = state.NewRecorder(parametersConfigName)
	} else {
		log.Warn().Msg("DB_HOST not set; running without the persistent audit trail.")
	}

	// Load vault parameters, falling back to configured defaults
	reserveRatioBps := config.ReserveRatioBps
	minLiquidity := config.MinLiquidity
	if state.DB != nil {
		params, err := state.LoadActiveVaultParameters(parametersConfigName)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load active vault parameters, using defaults and saving.")
			defaults := types.VaultParameters{ReserveRatioBps: reserveRatioBps, MinLiquidity: minLiquidity}
			if _, err := state.SaveVaultParameters(defaults, parametersConfigName, 1, true); err != nil {
				log.Fatal().Err(err).Msg("Failed to save initial default vault parameters.")
			}
		} else {
			reserveRatioBps = params.ReserveRatioBps
			minLiquidity = params.MinLiquidity
			log.Info().Msg("Vault parameters loaded successfully.")
		}
	}

	// --- 2. Collaborator Wiring ---
	poolAsset := types.AssetID(config.PoolAssetDenom)
	rewardAsset := types.AssetID(config.RewardAssetDenom)

	assetLedger := ledger.NewInMemoryLedger(poolAsset, rewardAsset)

	policy := capability.NewStaticPolicy()
	policy.Grant(config.AdminPrincipal, types.CapabilityAdmin)
	policy.Grant(config.AgentPrincipal, types.CapabilityAgent)
	policy.Grant(config.GuardianPrincipal, types.CapabilityGuardian)

	// --- 3. Vault Assembly ---
	v, err := vault.New(vault.Config{
		Account:         vaultAccount,
		PoolAsset:       poolAsset,
		RewardAsset:     rewardAsset,
		ReserveRatioBps: reserveRatioBps,
		MinLiquidity:    minLiquidity,
		Ledger:          assetLedger,
		Capabilities:    policy,
		Recorder:        recorder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vault")
	}

	yieldSource := strategy.NewSimulatedYieldSource(assetLedger, yieldAccount, strategyAccount)
	unit, err := strategy.NewUnit(strategy.Config{
		Name:               defaultStrategyKey,
		Account:            strategyAccount,
		Vault:              vaultAccount,
		EmergencyRecipient: config.EmergencyRecipient,
		SupportedAssets:    []types.AssetID{poolAsset, rewardAsset},
		ReserveRatioPct:    config.StrategyReserveRatioPct,
		MinLiquidity:       config.StrategyMinLiquidity,
		RiskLevel:          2,
		Ledger:             assetLedger,
		Yield:              yieldSource,
		Capabilities:       policy,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize default strategy unit")
	}
	if err := v.RegisterStrategy(unit); err != nil {
		log.Fatal().Err(err).Msg("Failed to register default strategy unit")
	}

	log.Info().
		Str("poolAsset", string(poolAsset)).
		Str("rewardAsset", string(rewardAsset)).
		Str("defaultStrategy", defaultStrategyKey).
		Msg("Vault assembled")

	// --- 4. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, v)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting PCV web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Wait for Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received, exiting")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
