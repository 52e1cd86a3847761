package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	countdownTime time.Duration
	kickTimeout   time.Duration
	port          int
	prefix        string
	profile       bool
	questionTime  time.Duration
	roomSize      int
	secret        string
	tlsCert       string
	tlsKey        string
	tokenLifetime time.Duration
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.secret == "" {
		return errors.New("a session token secret must be provided via --secret")
	}
	if c.roomSize < 1 {
		return fmt.Errorf("invalid room size (must be at least 1): %d", c.roomSize)
	}
	if c.countdownTime < time.Second || c.questionTime < time.Second {
		return errors.New("countdown and question times must be at least one second")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quiztime",
		Short:         "A real-time multiplayer trivia session, served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZTIME_BIND)")
	fs.DurationVar(&cfg.countdownTime, "countdown-time", 10*time.Second, "lobby countdown before the first question (env: QUIZTIME_COUNTDOWN_TIME)")
	fs.DurationVar(&cfg.kickTimeout, "kick-timeout", 60*time.Second, "time before a kicked player may rejoin (env: QUIZTIME_KICK_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZTIME_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZTIME_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZTIME_PROFILE)")
	fs.DurationVar(&cfg.questionTime, "question-time", 15*time.Second, "time allowed to answer each question (env: QUIZTIME_QUESTION_TIME)")
	fs.IntVar(&cfg.roomSize, "room-size", 10, "maximum number of players in the room (env: QUIZTIME_ROOM_SIZE)")
	fs.StringVar(&cfg.secret, "secret", "", "shared secret used to sign session tokens (env: QUIZTIME_SECRET)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZTIME_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZTIME_TLS_KEY)")
	fs.DurationVar(&cfg.tokenLifetime, "token-lifetime", time.Hour, "validity window of issued session tokens (env: QUIZTIME_TOKEN_LIFETIME)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZTIME_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZTIME_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quiztime v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
