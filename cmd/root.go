// Copyright © 2016 Luit van Drongelen <luit@luit.eu>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd // import "github.com/yangbodong22011/redis-cluster-proxy/cmd"

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/logging"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proxy"
)

var cfgFile string

// rootCmd is the `redis-cluster-proxy` command.
var rootCmd = &cobra.Command{
	Use:   "redis-cluster-proxy <host:port>",
	Short: "Redis Cluster Proxy for cluster-unaware software",
	Long: `Redis Cluster Proxy is a daemon that lets cluster-unaware applications
talk to a Redis (3.0+) Cluster as if it were a single node. It parses just
enough of each request to find its routing key, forwards it to the owning
shard, and multiplexes many client connections over a small pool of
per-(thread,shard) upstream connections.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(args[0])
		if err != nil {
			return err
		}
		log := logging.Setup(cfg)
		return proxy.Run(cfg, log)
	},
	SilenceUsage: true,
}

// Execute activates the `redis-cluster-proxy` command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.redis-cluster-proxy.yaml)")

	flags := rootCmd.Flags()
	flags.IntP("port", "p", config.DefaultPort, "port to listen on")
	flags.Int("maxclients", config.DefaultMaxClients, "maximum number of simultaneous client connections")
	flags.Int("threads", config.DefaultThreads, "number of worker threads (1..500)")
	flags.Duration("tcpkeepalive", config.DefaultTCPKeepAlive, "TCP keepalive interval for upstream connections")
	flags.Bool("daemonize", false, "run in the background (logged as unsupported; Go has no fork())")
	flags.String("disable-multiplexing", string(config.MultiplexingAuto), "multiplexing mode: never, auto, or always")
	flags.StringP("auth", "a", "", "password to authenticate to cluster nodes with")
	flags.Bool("disable-colors", false, "disable ANSI colors in log output")
	flags.String("log-level", string(config.LogInfo), "log level: debug, info, success, warning, or error")
	flags.Bool("dump-queries", false, "log every parsed client request at debug level")
	flags.Bool("dump-buffer", false, "log raw socket buffers at debug level")
	flags.Int("maxpending", config.DefaultMaxPending, "maximum pending (in-flight) requests per client connection")

	for _, name := range []string{
		"port", "maxclients", "threads", "tcpkeepalive", "daemonize",
		"disable-multiplexing", "auth", "disable-colors", "log-level",
		"dump-queries", "dump-buffer", "maxpending",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in a config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".redis-cluster-proxy")
		viper.AddConfigPath("$HOME")
	}
	viper.SetEnvPrefix("rcp")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Unable to read config: %v\n", err)
		}
	}
}

// configFromFlags builds and validates a config.Config from the bound
// Viper values, with seed as the one value Cobra hands us positionally
// rather than through a flag.
func configFromFlags(seed string) (config.Config, error) {
	cfg := config.Default()
	cfg.Seed = seed
	cfg.Port = viper.GetInt("port")
	cfg.MaxClients = viper.GetInt("maxclients")
	cfg.Threads = viper.GetInt("threads")
	cfg.TCPKeepAlive = viper.GetDuration("tcpkeepalive")
	cfg.Daemonize = viper.GetBool("daemonize")
	cfg.Multiplexing = config.MultiplexingMode(viper.GetString("disable-multiplexing"))
	cfg.Auth = viper.GetString("auth")
	cfg.DisableColors = viper.GetBool("disable-colors")
	cfg.LogLevel = config.LogLevel(viper.GetString("log-level"))
	cfg.DumpQueries = viper.GetBool("dump-queries")
	cfg.DumpBuffer = viper.GetBool("dump-buffer")
	cfg.MaxPendingPerConn = viper.GetInt("maxpending")

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Daemonize {
		// Go has no fork()/daemon(3) primitive; run in the foreground and
		// say so instead of silently ignoring the flag.
		fmt.Fprintln(os.Stderr, "warning: --daemonize is not supported, running in the foreground")
	}
	return cfg, nil
}
