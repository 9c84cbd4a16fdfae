package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the chat
// server and its supporting tools.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Port on which the server accepts client connections.
	Port int `mapstructure:"port"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`
	// Room every session is placed in after logging in. It can never be destroyed.
	DefaultRoom string `mapstructure:"default_room"`
	// Rooms created at startup in addition to the default room.
	AdditionalRooms []string `mapstructure:"additional_rooms"`
	// Longest room name a moderator may create.
	MaxRoomNameLength int `mapstructure:"max_room_name_length"`
	// Pause between two iterations of the server loop.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// An iteration taking longer than this is logged as lag.
	LagWarningThreshold time.Duration `mapstructure:"lag_warning_threshold"`
	// Inactivity after which a session is announced as idle.
	IdleThreshold time.Duration `mapstructure:"idle_threshold"`
	// Inactivity after which a session is disconnected.
	KickThreshold time.Duration `mapstructure:"kick_threshold"`
	// Largest number of bytes buffered for a session without seeing a newline.
	ReadBufferSize int `mapstructure:"read_buffer_size"`
	// Number of outbound packets queued per session before it is considered dead.
	WriteQueueSize int `mapstructure:"write_queue_size"`
	// Deadline for a single socket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Version string announced to every session after it logs in.
	BuildVersion string `mapstructure:"build_version"`

	Logging struct {
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// File receiving one line per handled packet. Blank disables the chat log.
		ChatLogPath string `mapstructure:"chat_log_path"`
	} `mapstructure:"logging"`

	Backend struct {
		// Base URL of the account service, e.g. http://accounts.example.com.
		Host string `mapstructure:"host"`
		// Path of the credential check endpoint.
		LoginPage string `mapstructure:"login_page"`
		// Path of the preferences endpoint.
		ConfigPage string `mapstructure:"config_page"`
		// Path notified of bans and unbans. Blank disables the notification.
		BanPage string `mapstructure:"ban_page"`
		// Timeout applied to every request made to the account service.
		Timeout   time.Duration `mapstructure:"timeout"`
		UserAgent string        `mapstructure:"user_agent"`
		// Preferences handed to a session when the account service has none.
		DefaultPrefs string `mapstructure:"default_prefs"`
		// How long the worker sleeps when its queue is empty.
		PollInterval time.Duration `mapstructure:"poll_interval"`
		// How long the worker keeps flushing saved preferences after shutdown.
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"backend"`

	Flood struct {
		// Sustained chat messages a session may send per second. Zero, the
		// default, disables flood control.
		MessagesPerSecond float64 `mapstructure:"messages_per_second"`
		// Messages a session may send in a burst above the sustained rate.
		Burst int `mapstructure:"burst"`
	} `mapstructure:"flood"`

	Database struct {
		// Options: sqlite, postgres
		Engine string `mapstructure:"engine"`
		// Path to the sqlite database file.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to Name.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every packet sent and received.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`

	settings *Settings
}

const (
	envVarPrefix = "RVSERVER"

	DefaultPrefs = "theme|Classic|red|0|green|0|blue|0|freezeChat|false|ignoreColors|false|timeStamp|false|beep|true|bleep|true|audio|true"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "0.0.0.0")
	v.SetDefault("max_connections", 1024)
	v.SetDefault("default_room", "Main")
	v.SetDefault("additional_rooms", []string{})
	v.SetDefault("max_room_name_length", 32)
	v.SetDefault("tick_interval", 150*time.Millisecond)
	v.SetDefault("lag_warning_threshold", time.Second)
	v.SetDefault("idle_threshold", 5*time.Minute)
	v.SetDefault("kick_threshold", 90*time.Minute)
	v.SetDefault("read_buffer_size", 4096)
	v.SetDefault("write_queue_size", 256)
	v.SetDefault("write_timeout", 10*time.Second)
	v.SetDefault("build_version", "rvserver")
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.log_file_path", "")
	v.SetDefault("logging.chat_log_path", "")
	v.SetDefault("backend.ban_page", "")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.user_agent", "rvserver")
	v.SetDefault("backend.default_prefs", DefaultPrefs)
	v.SetDefault("backend.poll_interval", 25*time.Millisecond)
	v.SetDefault("backend.shutdown_timeout", 5*time.Second)
	v.SetDefault("flood.messages_per_second", 0.0)
	v.SetDefault("flood.burst", 8)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "rvserver.db")
	v.SetDefault("debugging.enabled", false)
	v.SetDefault("debugging.pprof_port", 4040)
	v.SetDefault("debugging.packet_logging_enabled", false)
	v.SetDefault("debugging.database_logging_enabled", false)
}

// Keys the server cannot start without.
var requiredKeys = []string{
	"port",
	"backend.host",
	"backend.login_page",
	"backend.config_page",
}

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("no config file in path %s", configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return newConfig(v)
}

func newConfig(v *viper.Viper) (*Config, error) {
	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	settings := &Settings{v: v}
	for _, k := range requiredKeys {
		if _, err := settings.Get(k, false, ""); err != nil {
			return nil, err
		}
	}

	if err := validatePorts(settings); err != nil {
		return nil, err
	}

	config := &Config{settings: settings}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config object: %w", err)
	}
	return config, nil
}

func validatePorts(settings *Settings) error {
	port, err := settings.GetInt("port", false, 0)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d is out of range", ErrInvalidSetting, port)
	}

	debugging, err := settings.GetBool("debugging.enabled", true, false)
	if err != nil || !debugging {
		return err
	}
	pprofPort, err := settings.GetInt("debugging.pprof_port", true, 0)
	if err != nil {
		return err
	}
	if pprofPort < 1 || pprofPort > 65535 {
		return fmt.Errorf("%w: debugging.pprof_port %d is out of range", ErrInvalidSetting, pprofPort)
	}
	return nil
}

// Settings exposes the raw key/value view of the configuration the Config
// was loaded from.
func (c *Config) Settings() *Settings {
	return c.settings
}

// Address returns the host:port pair the chat listener binds to.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// BackendURL joins the configured backend host with one of its pages.
func (c *Config) BackendURL(page string) string {
	if page == "" {
		return ""
	}
	return strings.TrimRight(c.Backend.Host, "/") + "/" + strings.TrimLeft(page, "/")
}
