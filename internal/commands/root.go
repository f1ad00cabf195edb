package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tollcheck/tollcheck/internal/buildinfo"
	"github.com/tollcheck/tollcheck/internal/config"
	"github.com/tollcheck/tollcheck/internal/importer"
	"github.com/tollcheck/tollcheck/internal/logging"
)

const envPrefix = "TOLLCHECK"

// rootOptions carries the persistent flags and the settings layered on top
// of the config file.
type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:     "tollcheck",
		Short:   "Reconcile toll passage bills against the one-hour rule",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadEnvFiles()
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: tollcheck.yaml in the input folder)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json, auto)")
	pf.Bool("no-color", false, "disable colored output")

	opts.v.SetEnvPrefix(envPrefix)
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	opts.v.AutomaticEnv()
	_ = opts.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = opts.v.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = opts.v.BindPFlag("no_color", pf.Lookup("no-color"))

	rootCmd.AddCommand(
		newRunCommand(opts),
		newInspectCommand(opts),
		newCollectCommand(opts),
		newInitCommand(),
	)

	return rootCmd
}

// loadEnvFiles loads .env then .env.local from the working directory.
// Variables already set win.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// settings returns the config for folder with env and flag overrides
// applied. Precedence: flags, TOLLCHECK_* env, config file, defaults.
func (o *rootOptions) settings(folder string) (*config.Config, string, error) {
	cfg, path, err := config.Find(folder, o.configFile)
	if err != nil {
		return nil, "", err
	}

	strs := map[string]*string{
		"input.pattern":          &cfg.Input.Pattern,
		"input.format":           &cfg.Input.Format,
		"input.delimiter":        &cfg.Input.Delimiter,
		"input.encoding":         &cfg.Input.Encoding,
		"input.timezone":         &cfg.Input.Timezone,
		"output.format":          &cfg.Output.Format,
		"output.workbook_suffix": &cfg.Output.WorkbookSuffix,
		"logging.level":          &cfg.Logging.Level,
		"logging.format":         &cfg.Logging.Format,
	}
	for key, dst := range strs {
		o.v.SetDefault(key, *dst)
		*dst = o.v.GetString(key)
	}
	o.v.SetDefault("input.check_header_names", cfg.Input.CheckHeaderNames)
	cfg.Input.CheckHeaderNames = o.v.GetBool("input.check_header_names")

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func (o *rootOptions) noColor() bool {
	return o.v.GetBool("no_color")
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	return logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		NoColor: o.noColor(),
		Output:  cmd.ErrOrStderr(),
	})
}

// newParser returns the parser cfg.Input names, set up from cfg.
func newParser(cfg *config.Config) (importer.Parser, error) {
	enc, err := importer.LookupEncoding(cfg.Input.Encoding)
	if err != nil {
		return nil, err
	}
	delim, err := cfg.Input.DelimiterRune()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Input.Location()
	if err != nil {
		return nil, err
	}

	reg := importer.DefaultRegistry(importer.AutoPASSOptions{
		Delimiter:        delim,
		Encoding:         enc,
		Location:         loc,
		TimestampLayouts: cfg.Input.TimestampLayouts,
		CheckHeaderNames: cfg.Input.CheckHeaderNames,
	})
	p := reg.Get(cfg.Input.Format)
	if p == nil {
		return nil, fmt.Errorf("unknown input format %q", cfg.Input.Format)
	}
	return p, nil
}
