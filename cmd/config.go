package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the project root holding pyt.yaml, replaceable in tests.
var configDirFunc = defaultConfigDir

// defaultConfigDir walks up from the working directory to the nearest
// pyt.yaml. Without one the working directory is the project root.
func defaultConfigDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return findProjectRoot(cwd), nil
}

func findProjectRoot(start string) string {
	for dir := start; ; {
		if _, err := os.Stat(filepath.Join(dir, projectFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage pyt configuration.

The project file is pyt.yaml in the project root. Settings from
~/.config/pyt/config.yaml apply underneath it, and PYT_* environment
variables override both.

Running bare 'pyt config' is the same as 'pyt config show'.`,
	Annotations: map[string]string{skipProject: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create pyt.yaml with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating pyt.yaml with comments.
const configTemplate = `# pyt configuration
# See: pyt config show (for effective values and sources)

# Virtualenv directory, relative to the pyenv root (default: pyenv)
pyenv_dir: {{ .PyenvDir }}

# Local package cache used for offline installs (default: .sdists)
sdists_dir: {{ .SdistsDir }}

# Project source directories (pth file, clean, lint)
sources:{{ range .Sources }}
  - {{ . }}{{ else }} []{{ end }}

# Python module used by 'pyt manage', e.g. myproject.manage
manage: "{{ .Manage }}"

# Interpreter that builds the virtualenv (default: python3)
sys_python: {{ .SysPython }}

# Shell command run before the virtualenv is created
# setup_hook: ""

# Requirement files installed by 'pyt setup'
requirements:{{ range .Requirements }}
  - {{ . }}{{ end }}

# Install only from sdists_dir (default: true)
local_only: {{ .LocalOnly }}

# Application server
server:
  # argv of the server, e.g. [gunicorn, myproject.wsgi]
  command:{{ range .ServerCommand }}
    - {{ . }}{{ else }} []{{ end }}
  # Signal asking the server to shut down (default: QUIT)
  grace_signal: {{ .GraceSignal }}
  # How long 'pyt server stop' waits for the server to exit
  stop_timeout: {{ .StopTimeout }}
  # pid_file: <pyenv>/var/run/server.pid
  # log_file: <pyenv>/var/log/server.log

# Database container
db:
  name: "{{ .DBName }}"
  image: "{{ .DBImage }}"
  # ports: ["5432:5432"]
  # env: ["POSTGRES_PASSWORD=dev"]
  # volumes: []

# Shell command run after 'pyt db migrate'
# dbschema_hook: ""
`

type configTemplateData struct {
	PyenvDir      string
	SdistsDir     string
	Sources       []string
	Manage        string
	SysPython     string
	Requirements  []string
	LocalOnly     bool
	ServerCommand []string
	GraceSignal   string
	StopTimeout   string
	DBName        string
	DBImage       string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, projectFileName), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		PyenvDir:      viper.GetString("pyenv_dir"),
		SdistsDir:     viper.GetString("sdists_dir"),
		Sources:       viper.GetStringSlice("sources"),
		Manage:        viper.GetString("manage"),
		SysPython:     viper.GetString("sys_python"),
		Requirements:  viper.GetStringSlice("requirements"),
		LocalOnly:     viper.GetBool("local_only"),
		ServerCommand: viper.GetStringSlice("server.command"),
		GraceSignal:   viper.GetString("server.grace_signal"),
		StopTimeout:   viper.GetDuration("server.stop_timeout").String(),
		DBName:        viper.GetString("db.name"),
		DBImage:       viper.GetString("db.image"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "pyenv_dir", EnvVar: "PYT_PYENV_DIR"},
	{Key: "sdists_dir", EnvVar: "PYT_SDISTS_DIR"},
	{Key: "sources", EnvVar: "PYT_SOURCES"},
	{Key: "manage", EnvVar: "PYT_MANAGE"},
	{Key: "sys_python", EnvVar: "PYT_SYS_PYTHON"},
	{Key: "virtualenv", EnvVar: "PYT_VIRTUALENV"},
	{Key: "setup_hook", EnvVar: "PYT_SETUP_HOOK"},
	{Key: "requirements", EnvVar: "PYT_REQUIREMENTS"},
	{Key: "local_only", EnvVar: "PYT_LOCAL_ONLY"},
	{Key: "db_path", EnvVar: "PYT_DB_PATH"},
	{Key: "server.command", EnvVar: "PYT_SERVER_COMMAND"},
	{Key: "server.pid_file", EnvVar: "PYT_SERVER_PID_FILE"},
	{Key: "server.log_file", EnvVar: "PYT_SERVER_LOG_FILE"},
	{Key: "server.grace_signal", EnvVar: "PYT_SERVER_GRACE_SIGNAL"},
	{Key: "server.stop_timeout", EnvVar: "PYT_SERVER_STOP_TIMEOUT"},
	{Key: "server.log_backups", EnvVar: "PYT_SERVER_LOG_BACKUPS"},
	{Key: "db.name", EnvVar: "PYT_DB_NAME"},
	{Key: "db.image", EnvVar: "PYT_DB_IMAGE"},
	{Key: "db.ports", EnvVar: "PYT_DB_PORTS"},
	{Key: "db.env", EnvVar: "PYT_DB_ENV"},
	{Key: "db.volumes", EnvVar: "PYT_DB_VOLUMES"},
	{Key: "dbschema_hook", EnvVar: "PYT_DBSCHEMA_HOOK"},
	{Key: "log.max_size_mb", EnvVar: "PYT_LOG_MAX_SIZE_MB"},
	{Key: "log.max_backups", EnvVar: "PYT_LOG_MAX_BACKUPS"},
	{Key: "log.max_age_days", EnvVar: "PYT_LOG_MAX_AGE_DAYS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if used := viper.ConfigFileUsed(); used != "" && used != cfgPath {
		ui.Info("User config: %s", used)
	}
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set: set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'pyt config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
