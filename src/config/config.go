package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/disputes/src/common"
	"github.com/mosaicnetworks/disputes/src/dispute"
	"github.com/mosaicnetworks/disputes/src/keystore"
	"github.com/mosaicnetworks/disputes/src/proxy"
	druntime "github.com/mosaicnetworks/disputes/src/runtime"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the
	// validator's private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultLogFile            = ""
	DefaultStore              = false
	DefaultRetention          = 6
	DefaultTimeoutSessions    = 6
	DefaultThresholdNum       = 2
	DefaultThresholdDen       = 3
	DefaultInboxSize          = 1024
	DefaultMaxStorageFailures = 3
	DefaultRetryAttempts      = 5
	DefaultRetryBackoff       = 100 * time.Millisecond
	DefaultRequestTimeout     = 10 * time.Second
	DefaultServiceAddr        = "127.0.0.1:8000"
	DefaultNoService          = false
	DefaultWAMPAddr           = "127.0.0.1:8100"
	DefaultWAMPRealm          = "disputes"
	DefaultNoWAMP             = false
	DefaultValidatorProcedure = ""
)

// Config contains all the configuration properties of a dispute coordinator.
type Config struct {
	// DataDir is the top-level directory containing configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Retention is the number of sessions below the highest known session for
	// which disputes are kept. Vote sets in older sessions are pruned.
	Retention uint32 `mapstructure:"retention"`

	// TimeoutSessions is the number of sessions after which an Active dispute
	// times out. 0 disables timeouts.
	TimeoutSessions uint32 `mapstructure:"timeout-sessions"`

	// ThresholdNumerator and ThresholdDenominator define the supermajority
	// fraction. A dispute concludes when one side has more than
	// Numerator/Denominator of the validators.
	ThresholdNumerator   int `mapstructure:"threshold-num"`
	ThresholdDenominator int `mapstructure:"threshold-den"`

	// InboxSize is the capacity of the coordinator's request channel.
	InboxSize int `mapstructure:"inbox-size"`

	// MaxStorageFailures is the number of consecutive storage write failures
	// after which the coordinator gives up.
	MaxStorageFailures int `mapstructure:"max-storage-failures"`

	// RetryAttempts and RetryBackoff control retries of calls to the runtime,
	// the validator and the keystore. The backoff doubles after each attempt.
	RetryAttempts int           `mapstructure:"retry-attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry-backoff"`

	// RequestTimeout bounds the time a client waits for the coordinator to
	// answer a request.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// NoWAMP disables the WAMP endpoint.
	NoWAMP bool `mapstructure:"no-wamp"`

	// WAMPAddr is the address:port where the embedded WAMP router accepts
	// websocket connections. If empty, the router only serves in-process
	// clients.
	WAMPAddr string `mapstructure:"wamp-listen"`

	// WAMPRealm is the WAMP realm in which procedures are registered.
	WAMPRealm string `mapstructure:"wamp-realm"`

	// ValidatorProcedure is the WAMP procedure called to validate candidates.
	// If empty, and no Validator is set, candidates are never re-validated.
	ValidatorProcedure string `mapstructure:"validator-procedure"`

	// Keyfiles are the files containing the validator keys held by this
	// node. Defaults to the priv_key file in DataDir.
	Keyfiles []string `mapstructure:"keys"`

	// Signer overrides the keystore loaded from Keyfiles.
	Signer keystore.Signer

	// Runtime provides session information. Defaults to a JSONRuntime reading
	// from DataDir.
	Runtime druntime.API

	// Validator re-validates disputed candidates.
	Validator proxy.CandidateValidator

	// Distributor sends the local node's votes to other validators.
	Distributor proxy.VoteDistributor

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:              DefaultDataDir(),
		LogLevel:             DefaultLogLevel,
		LogFile:              DefaultLogFile,
		Store:                DefaultStore,
		DatabaseDir:          DefaultDatabaseDir(),
		Retention:            DefaultRetention,
		TimeoutSessions:      DefaultTimeoutSessions,
		ThresholdNumerator:   DefaultThresholdNum,
		ThresholdDenominator: DefaultThresholdDen,
		InboxSize:            DefaultInboxSize,
		MaxStorageFailures:   DefaultMaxStorageFailures,
		RetryAttempts:        DefaultRetryAttempts,
		RetryBackoff:         DefaultRetryBackoff,
		RequestTimeout:       DefaultRequestTimeout,
		ServiceAddr:          DefaultServiceAddr,
		NoService:            DefaultNoService,
		WAMPAddr:             DefaultWAMPAddr,
		WAMPRealm:            DefaultWAMPRealm,
		NoWAMP:               DefaultNoWAMP,
		ValidatorProcedure:   DefaultValidatorProcedure,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. Outer surfaces are disabled and retries are
// fast.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.NoService = true
	config.NoWAMP = true
	config.RetryBackoff = time.Millisecond
	config.RequestTimeout = 5 * time.Second
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value. If the database directory is not
// currently the default, it means the user has explicitely set it to something
// else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the default key file.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// KeyfilePaths returns Keyfiles, or the default key file if it is empty.
func (c *Config) KeyfilePaths() []string {
	if len(c.Keyfiles) == 0 {
		return []string{c.Keyfile()}
	}
	return c.Keyfiles
}

// Params returns the state machine parameters.
func (c *Config) Params() dispute.Params {
	return dispute.Params{
		Numerator:       c.ThresholdNumerator,
		Denominator:     c.ThresholdDenominator,
		TimeoutSessions: c.TimeoutSessions,
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "disputes". If
// LogFile is set, every entry is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "disputes")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Disputes")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Disputes")
		} else {
			return filepath.Join(home, ".disputes")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
