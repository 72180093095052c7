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

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "crit"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage crit configuration.

Running bare 'crit config' is the same as 'crit config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
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

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# crit configuration
# See: crit config show (for effective values and sources)

# State/data directory (default: ~/.config/crit)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/crit/crit.db)
# db_path: {{ .DBPath }}

# Anthropic API settings for the AI review stage
anthropic:
  # API key (also read from CRIT_ANTHROPIC_API_KEY)
  api_key: ""

  # Model to use for reviews
  model: "{{ .AnthropicModel }}"

# Static analysis stage
static:
  # Enable the stage (default: true)
  enabled: {{ .StaticEnabled }}

  # Maximum file size in bytes (default: 1048576)
  max_file_size: {{ .StaticMaxFileSize }}

  # External analysis tool; heuristic checks run when empty
  tool_command: "{{ .StaticToolCommand }}"

# AI review stage
review:
  # Enable the stage (default: true)
  enabled: {{ .ReviewEnabled }}

  # Findings below this confidence are dropped (default: 0.3)
  min_confidence: {{ .ReviewMinConfidence }}

# Approval stage
approval:
  # Score at or above which files auto-approve (default: 90)
  auto_approve_threshold: {{ .AutoApproveThreshold }}

  # Score below which files require manual approval (default: 60)
  require_approval_threshold: {{ .RequireApprovalThreshold }}

  # Auto-reject files with critical static errors (default: true)
  auto_reject_critical: {{ .AutoRejectCritical }}

  # Pending approvals expire after this many minutes (default: 60)
  timeout_minutes: {{ .TimeoutMinutes }}
`

type configTemplateData struct {
	StateDir                 string
	DBPath                   string
	AnthropicModel           string
	StaticEnabled            bool
	StaticMaxFileSize        int
	StaticToolCommand        string
	ReviewEnabled            bool
	ReviewMinConfidence      float64
	AutoApproveThreshold     int
	RequireApprovalThreshold int
	AutoRejectCritical       bool
	TimeoutMinutes           int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
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
		StateDir:                 viper.GetString("state_dir"),
		DBPath:                   viper.GetString("db_path"),
		AnthropicModel:           viper.GetString("anthropic.model"),
		StaticEnabled:            viper.GetBool("static.enabled"),
		StaticMaxFileSize:        viper.GetInt("static.max_file_size"),
		StaticToolCommand:        viper.GetString("static.tool_command"),
		ReviewEnabled:            viper.GetBool("review.enabled"),
		ReviewMinConfidence:      viper.GetFloat64("review.min_confidence"),
		AutoApproveThreshold:     viper.GetInt("approval.auto_approve_threshold"),
		RequireApprovalThreshold: viper.GetInt("approval.require_approval_threshold"),
		AutoRejectCritical:       viper.GetBool("approval.auto_reject_critical"),
		TimeoutMinutes:           viper.GetInt("approval.timeout_minutes"),
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
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "CRIT_STATE_DIR"},
	{Key: "db_path", EnvVar: "CRIT_DB_PATH"},
	{Key: "anthropic.api_key", EnvVar: "CRIT_ANTHROPIC_API_KEY", Secret: true},
	{Key: "anthropic.model", EnvVar: "CRIT_ANTHROPIC_MODEL"},
	{Key: "static.enabled", EnvVar: "CRIT_STATIC_ENABLED"},
	{Key: "static.max_file_size", EnvVar: "CRIT_STATIC_MAX_FILE_SIZE"},
	{Key: "static.tool_command", EnvVar: "CRIT_STATIC_TOOL_COMMAND"},
	{Key: "review.enabled", EnvVar: "CRIT_REVIEW_ENABLED"},
	{Key: "review.min_confidence", EnvVar: "CRIT_REVIEW_MIN_CONFIDENCE"},
	{Key: "review.max_findings_per_category", EnvVar: "CRIT_REVIEW_MAX_FINDINGS_PER_CATEGORY"},
	{Key: "review.cache_size", EnvVar: "CRIT_REVIEW_CACHE_SIZE"},
	{Key: "approval.auto_approve_threshold", EnvVar: "CRIT_APPROVAL_AUTO_APPROVE_THRESHOLD"},
	{Key: "approval.require_approval_threshold", EnvVar: "CRIT_APPROVAL_REQUIRE_APPROVAL_THRESHOLD"},
	{Key: "approval.auto_reject_critical", EnvVar: "CRIT_APPROVAL_AUTO_REJECT_CRITICAL"},
	{Key: "approval.max_ignorable_issues", EnvVar: "CRIT_APPROVAL_MAX_IGNORABLE_ISSUES"},
	{Key: "approval.timeout_minutes", EnvVar: "CRIT_APPROVAL_TIMEOUT_MINUTES"},
	{Key: "orchestrator.chunk_delay_ms", EnvVar: "CRIT_ORCHESTRATOR_CHUNK_DELAY_MS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
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
		if k.Secret {
			if s, _ := val.(string); s != "" {
				val = "(set)"
			}
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-38s %v  %s\n", k.Key, val, source)
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
		return fmt.Errorf("$EDITOR is not set (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'crit config init' first)", cfgPath)
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
