package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FORKINGDONGLES_"

type Configuration struct {
	Server  *ServerConfig
	Bot     *BotConfig
	Plugins *PluginsConfig
	Storage *StorageConfig
	HTTP    *HTTPConfig
	Metrics *MetricsConfig
}

type ServerConfig struct {
	Nick        string
	Server      string
	Port        int
	Channels    []string
	SSL         bool
	TLSInsecure bool
	SASLNick    string
	SASLPass    string
}

type BotConfig struct {
	Admins     []string
	Verbose    bool
	StateDelay time.Duration
	WhoisRate  float64
	WhoisBurst int
}

type PluginsConfig struct {
	Load      []string
	CacheSize int
}

type StorageConfig struct {
	Database string
	Settings string
}

type HTTPConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

type MetricsConfig struct {
	Addr string
}

// YamlSource implements cli.ValueSource for a map loaded from YAML
type YamlSource struct {
	data map[string]any
	key  string
}

func (y *YamlSource) Lookup() (string, bool) {
	if v, ok := y.data[y.key]; ok {
		if slice, ok := v.([]any); ok {
			var strs []string
			for _, item := range slice {
				strs = append(strs, fmt.Sprintf("%v", item))
			}
			return strings.Join(strs, ","), true
		}
		return fmt.Sprintf("%v", v), true
	}
	return "", false
}

func (y *YamlSource) String() string   { return "yaml" }
func (y *YamlSource) GoString() string { return "yaml" }

// LoadYAML reads a flat YAML document into a lookup map for YamlSource.
func LoadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func GetFlags() []cli.Flag {
	var configData map[string]any
	if configPath := getConfigPath(os.Args); configPath != "" {
		data, err := LoadYAML(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config file %s: %v\n", configPath, err)
		}
		configData = data
	}
	return Flags(configData)
}

// Flags builds the flag set with values resolved as env > YAML > default.
func Flags(configData map[string]any) []cli.Flag {
	src := func(key string) cli.ValueSourceChain {
		chain := cli.ValueSourceChain{}
		chain.Chain = append(chain.Chain, cli.EnvVar(envPrefix+strings.ToUpper(key)))
		if configData != nil {
			chain.Chain = append(chain.Chain, &YamlSource{data: configData, key: key})
		}
		return chain
	}

	return []cli.Flag{
		// Config file
		&cli.StringFlag{Name: "config", Aliases: []string{"b"}, Usage: "use the named configuration file", Sources: cli.EnvVars(envPrefix + "CONFIG")},

		// IRC Client Configuration
		&cli.StringFlag{Name: "nick", Aliases: []string{"n"}, Value: "forkingdongles", Usage: "bot's nickname on the irc server", Sources: src("nick")},
		&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: "localhost", Usage: "irc server address", Sources: src("server")},
		&cli.BoolFlag{Name: "tls", Aliases: []string{"e"}, Usage: "enable TLS for the IRC connection", Sources: src("tls")},
		&cli.BoolFlag{Name: "tlsinsecure", Usage: "skip TLS certificate verification", Sources: src("tlsinsecure")},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 6667, Usage: "irc server port", Sources: src("port")},
		&cli.StringSliceFlag{Name: "channels", Aliases: []string{"c"}, Usage: "comma-separated list of channels to join", Sources: src("channels")},
		&cli.StringFlag{Name: "saslnick", Usage: "nick used for SASL", Sources: src("saslnick")},
		&cli.StringFlag{Name: "saslpass", Usage: "password for SASL plain", Sources: src("saslpass")},

		// Bot Configuration
		&cli.StringSliceFlag{Name: "admins", Aliases: []string{"A"}, Usage: "comma-separated list of hostmask patterns allowed to administrate the bot", Sources: src("admins")},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "enable verbose logging", Sources: src("verbose")},
		&cli.DurationFlag{Name: "statedelay", Value: time.Second, Usage: "delay before requesting modes and bans of a joined channel", Sources: src("statedelay")},
		&cli.FloatFlag{Name: "whoisrate", Value: 2, Usage: "WHOIS queries per second for newly seen users", Sources: src("whoisrate")},
		&cli.IntFlag{Name: "whoisburst", Value: 5, Usage: "WHOIS queries allowed in a burst", Sources: src("whoisburst")},

		// Plugins
		&cli.StringSliceFlag{Name: "plugins", Aliases: []string{"P"}, Value: []string{"admin"}, Usage: "comma-separated list of plugins to load on connect", Sources: src("plugins")},
		&cli.IntFlag{Name: "cachesize", Value: 100, Usage: "entries kept by plugin lookup caches", Sources: src("cachesize")},

		// Storage
		&cli.StringFlag{Name: "database", Aliases: []string{"d"}, Value: "forkingdongles.db", Usage: "sqlite database path", Sources: src("database")},
		&cli.StringFlag{Name: "settings", Value: "settings.json", Usage: "settings file path", Sources: src("settings")},

		// HTTP
		&cli.DurationFlag{Name: "fetchtimeout", Aliases: []string{"t"}, Value: 10 * time.Second, Usage: "timeout for each outbound http request", Sources: src("fetchtimeout")},
		&cli.Int64Flag{Name: "fetchmax", Value: 4 << 20, Usage: "maximum bytes read from an http response", Sources: src("fetchmax")},
		&cli.StringFlag{Name: "useragent", Value: "forkingdongles", Usage: "user agent for outbound http requests", Sources: src("useragent")},

		// Metrics
		&cli.StringFlag{Name: "metrics", Usage: "address to serve prometheus metrics on, disabled when empty", Sources: src("metrics")},
	}
}

func getConfigPath(args []string) string {
	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		return v
	}
	for i, arg := range args {
		if arg == "--config" || arg == "-b" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func (c *Configuration) PrintConfig() {
	fmt.Printf("nick: %s\n", c.Server.Nick)
	fmt.Printf("server: %s\n", c.Server.Server)
	fmt.Printf("port: %d\n", c.Server.Port)
	fmt.Printf("channels: %v\n", c.Server.Channels)
	fmt.Printf("tls: %t\n", c.Server.SSL)
	fmt.Printf("tlsinsecure: %t\n", c.Server.TLSInsecure)
	fmt.Printf("saslnick: %s\n", c.Server.SASLNick)
	fmt.Printf("saslpass: %s\n", mask(c.Server.SASLPass))
	fmt.Printf("admins: %v\n", c.Bot.Admins)
	fmt.Printf("verbose: %t\n", c.Bot.Verbose)
	fmt.Printf("statedelay: %s\n", c.Bot.StateDelay)
	fmt.Printf("whoisrate: %g\n", c.Bot.WhoisRate)
	fmt.Printf("whoisburst: %d\n", c.Bot.WhoisBurst)
	fmt.Printf("plugins: %v\n", c.Plugins.Load)
	fmt.Printf("cachesize: %d\n", c.Plugins.CacheSize)
	fmt.Printf("database: %s\n", c.Storage.Database)
	fmt.Printf("settings: %s\n", c.Storage.Settings)
	fmt.Printf("fetchtimeout: %s\n", c.HTTP.Timeout)
	fmt.Printf("fetchmax: %d\n", c.HTTP.MaxBytes)
	fmt.Printf("useragent: %s\n", c.HTTP.UserAgent)
	fmt.Printf("metrics: %s\n", c.Metrics.Addr)
}

func mask(secret string) string {
	if len(secret) > 3 {
		return strings.Repeat("*", len(secret)-3) + secret[len(secret)-3:]
	}
	return secret
}

func NewConfiguration(c *cli.Command) *Configuration {
	if c.IsSet("config") {
		zap.S().Infow("Using config file", "path", c.String("config"))
	}

	return &Configuration{
		Server: &ServerConfig{
			Nick:        c.String("nick"),
			Server:      c.String("server"),
			Port:        c.Int("port"),
			Channels:    c.StringSlice("channels"),
			SSL:         c.Bool("tls"),
			TLSInsecure: c.Bool("tlsinsecure"),
			SASLNick:    c.String("saslnick"),
			SASLPass:    c.String("saslpass"),
		},
		Bot: &BotConfig{
			Admins:     c.StringSlice("admins"),
			Verbose:    c.Bool("verbose"),
			StateDelay: c.Duration("statedelay"),
			WhoisRate:  c.Float("whoisrate"),
			WhoisBurst: c.Int("whoisburst"),
		},
		Plugins: &PluginsConfig{
			Load:      c.StringSlice("plugins"),
			CacheSize: c.Int("cachesize"),
		},
		Storage: &StorageConfig{
			Database: c.String("database"),
			Settings: c.String("settings"),
		},
		HTTP: &HTTPConfig{
			Timeout:   c.Duration("fetchtimeout"),
			MaxBytes:  c.Int64("fetchmax"),
			UserAgent: c.String("useragent"),
		},
		Metrics: &MetricsConfig{
			Addr: c.String("metrics"),
		},
	}
}
