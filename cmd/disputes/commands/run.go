package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/disputes/src/disputes"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a dispute coordinator
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the dispute coordinator",
		PreRunE: loadConfig,
		RunE:    runDisputes,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runDisputes(cmd *cobra.Command, args []string) error {
	engine := disputes.NewDisputes(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		engine.Shutdown()
		return err
	}

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		_config.Logger().Info("Received an interrupt, stopping services...")
		engine.Shutdown()
	}()

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file (JSON)")

	// Keys
	cmd.Flags().StringSlice("keys", _config.Keyfiles, "Validator key files (default [datadir]/priv_key)")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")

	// Disputes
	cmd.Flags().Uint32("retention", _config.Retention, "Number of past sessions for which disputes are kept")
	cmd.Flags().Uint32("timeout-sessions", _config.TimeoutSessions, "Sessions after which an unresolved dispute times out (0 disables)")
	cmd.Flags().Int("threshold-num", _config.ThresholdNumerator, "Supermajority numerator")
	cmd.Flags().Int("threshold-den", _config.ThresholdDenominator, "Supermajority denominator")

	// Coordinator
	cmd.Flags().Int("inbox-size", _config.InboxSize, "Capacity of the request channel")
	cmd.Flags().Int("max-storage-failures", _config.MaxStorageFailures, "Consecutive storage failures before stopping")
	cmd.Flags().Int("retry-attempts", _config.RetryAttempts, "Attempts for calls to collaborators")
	cmd.Flags().Duration("retry-backoff", _config.RetryBackoff, "Initial backoff between attempts")
	cmd.Flags().Duration("request-timeout", _config.RequestTimeout, "Timeout of requests to the coordinator")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// WAMP
	cmd.Flags().Bool("no-wamp", _config.NoWAMP, "Disable WAMP endpoint")
	cmd.Flags().StringP("wamp-listen", "w", _config.WAMPAddr, "Listen IP:Port for WAMP websockets")
	cmd.Flags().String("wamp-realm", _config.WAMPRealm, "WAMP realm")
	cmd.Flags().String("validator-procedure", _config.ValidatorProcedure, "WAMP procedure to call for candidate validation")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":            _config.DataDir,
		"LogLevel":           _config.LogLevel,
		"LogFile":            _config.LogFile,
		"Keyfiles":           _config.KeyfilePaths(),
		"Store":              _config.Store,
		"Retention":          _config.Retention,
		"TimeoutSessions":    _config.TimeoutSessions,
		"Threshold":          []int{_config.ThresholdNumerator, _config.ThresholdDenominator},
		"MaxStorageFailures": _config.MaxStorageFailures,
		"ServiceAddr":        _config.ServiceAddr,
		"NoService":          _config.NoService,
		"WAMPAddr":           _config.WAMPAddr,
		"NoWAMP":             _config.NoWAMP,
		"ValidatorProcedure": _config.ValidatorProcedure,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/disputes.toml (.json, .yaml also work)
	viper.SetConfigName("disputes")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
