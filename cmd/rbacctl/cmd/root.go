package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/terraconstructs/accessguard/internal/rbac/config"
	"github.com/terraconstructs/accessguard/internal/rbac/crypto"
	"github.com/terraconstructs/accessguard/internal/rbac/events"
	"github.com/terraconstructs/accessguard/internal/rbac/kv"
	"github.com/terraconstructs/accessguard/internal/rbac/repository"
	"github.com/terraconstructs/accessguard/internal/rbac/validate"
)

var cfg *config.Config
var repo *repository.Repository

var rootCmd = &cobra.Command{
	Use:   "rbacctl",
	Short: "Exercise the RBAC core's repository operations from the command line",
	Long: `rbacctl wires an in-memory KV adapter to the RBAC repository and exposes
its domain operations (resources, scopes, roles, assignments) as subcommands.
It is a construction harness for manual exercising, not the HTTP/REST surface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		repo = buildRepository(cfg)
		return nil
	},
}

// buildRepository wires the in-memory KV adapter used by every subcommand.
// A real deployment swaps kv.NewMemory() for kv.NewDynamoDB(client, cfg.TableName, log, cfg.BatchSize, cfg.RetryBudget);
// credential and client construction for that backend are the caller's
// responsibility.
func buildRepository(cfg *config.Config) *repository.Repository {
	adapter := kv.NewMemory()
	emitter := events.New(adapter, cfg.EventPolicy)

	var encryptor *crypto.ChaCha20Poly1305Encryptor
	if key := os.Getenv("RBAC_ENCRYPTION_KEY"); len(key) == 32 {
		enc, err := crypto.NewChaCha20Poly1305Encryptor([]byte(key))
		if err == nil {
			encryptor = enc
		}
	}
	if encryptor == nil {
		return repository.New(adapter, emitter, validate.Default(), nil)
	}
	return repository.New(adapter, emitter, validate.Default(), encryptor)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("config", "", "Config file path (overrides default search)")
	viper.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(roleCmd)
	rootCmd.AddCommand(assignmentCmd)
}

func initConfig() {
	if cfgFile := viper.GetString("config_file"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rbacctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
