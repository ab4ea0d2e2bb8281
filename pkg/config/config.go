package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// ProviderClaude selects the Anthropic backend.
	ProviderClaude = "claude"
	// ProviderGemini selects the Google Gemini backend.
	ProviderGemini = "gemini"

	// FormatStandard is the single experience-section layout.
	FormatStandard = "standard"
	// FormatSplit is the relevant/additional experience layout.
	FormatSplit = "split"

	defaultMaxRoles    = 4
	defaultMaxAttempts = 2
)

// Config represents the application configuration.
type Config struct {
	Name                string         `json:"name" mapstructure:"name" validate:"required"`
	Provider            string         `json:"provider" mapstructure:"provider" validate:"omitempty,oneof=claude gemini"`
	AnthropicAPIKey     string         `json:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	AnthropicAPIKeyFile string         `json:"anthropic_api_key_file,omitempty" mapstructure:"anthropic_api_key_file"`
	GeminiAPIKey        string         `json:"gemini_api_key,omitempty" mapstructure:"gemini_api_key"`
	GeminiAPIKeyFile    string         `json:"gemini_api_key_file,omitempty" mapstructure:"gemini_api_key_file"`
	ProfilePath         string         `json:"profile_path" mapstructure:"profile_path" validate:"required"`
	DataDir             string         `json:"data_dir" mapstructure:"data_dir"`
	CompaniesDir        string         `json:"companies_dir,omitempty" mapstructure:"companies_dir"`
	DatabaseURL         string         `json:"database_url,omitempty" mapstructure:"database_url"`
	Models              ModelsConfig   `json:"models,omitempty" mapstructure:"models"`
	Pandoc              PandocConfig   `json:"pandoc" mapstructure:"pandoc"`
	Defaults            DefaultConfig  `json:"defaults" mapstructure:"defaults"`
	Guidance            GuidanceConfig `json:"guidance,omitempty" mapstructure:"guidance"`
}

// ModelsConfig holds model selection for generation and evaluation.
type ModelsConfig struct {
	Generation string `json:"generation,omitempty" mapstructure:"generation"`
	Evaluation string `json:"evaluation,omitempty" mapstructure:"evaluation"`
}

// PandocConfig holds pandoc-related configuration.
type PandocConfig struct {
	TemplatePath string `json:"template_path" mapstructure:"template_path" validate:"required"`
	ClassFile    string `json:"class_file" mapstructure:"class_file" validate:"required"`
}

// DefaultConfig holds default values for commands.
type DefaultConfig struct {
	OutputDir   string `json:"output_dir" mapstructure:"output_dir"`
	MaxRoles    int    `json:"max_roles,omitempty" mapstructure:"max_roles" validate:"gte=0"`
	MaxAttempts int    `json:"max_attempts,omitempty" mapstructure:"max_attempts" validate:"gte=0,lte=10"`
	Person      string `json:"person,omitempty" mapstructure:"person" validate:"omitempty,oneof=first third"`
	Mode        string `json:"mode,omitempty" mapstructure:"mode" validate:"omitempty,oneof=ic leadership"`
	Format      string `json:"format,omitempty" mapstructure:"format" validate:"omitempty,oneof=standard split"`
}

// GuidanceConfig overrides the validation guidance per experience format.
type GuidanceConfig struct {
	Standard *SectionRules `json:"standard,omitempty" mapstructure:"standard"`
	Split    *SectionRules `json:"split,omitempty" mapstructure:"split"`
}

// SectionRules is the page and section contract the judge enforces.
type SectionRules struct {
	MaxPages          int      `json:"max_pages" mapstructure:"max_pages" validate:"gte=1"`
	RequiredSections  []string `json:"required_sections" mapstructure:"required_sections"`
	ForbiddenSections []string `json:"forbidden_sections" mapstructure:"forbidden_sections"`
}

// GetGenerationModel returns the generation model or the provider default if not specified.
func (c *Config) GetGenerationModel() (model string) {
	model = c.Models.Generation
	return model
}

// GetEvaluationModel returns the evaluation model, falling back to the generation model.
func (c *Config) GetEvaluationModel() (model string) {
	if c.Models.Evaluation != "" {
		model = c.Models.Evaluation
		return model
	}
	model = c.Models.Generation
	return model
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() (key string) {
	if c.Provider == ProviderGemini {
		key = c.GeminiAPIKey
		return key
	}
	key = c.AnthropicAPIKey
	return key
}

// RulesFor returns the guidance for an experience format, applying configured overrides.
func (c *Config) RulesFor(format string) (rules SectionRules) {
	rules = DefaultRules(format)

	override := c.Guidance.Standard
	if format == FormatSplit {
		override = c.Guidance.Split
	}

	if override != nil {
		rules = *override
	}

	return rules
}

// DefaultRules returns the built-in guidance for an experience format.
func DefaultRules(format string) (rules SectionRules) {
	if format == FormatSplit {
		rules = SectionRules{
			MaxPages:          2,
			RequiredSections:  []string{"Summary", "Relevant Experience", "Additional Experience", "Skills", "Education"},
			ForbiddenSections: []string{"References", "Hobbies", "Objective"},
		}
		return rules
	}

	rules = SectionRules{
		MaxPages:          2,
		RequiredSections:  []string{"Summary", "Experience", "Skills", "Education"},
		ForbiddenSections: []string{"References", "Hobbies", "Objective"},
	}
	return rules
}

// DefaultPath returns ~/.resume-forge/config.json.
func DefaultPath() (path string, err error) {
	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return path, err
	}
	path = filepath.Join(homeDir, ".resume-forge", "config.json")
	return path, err
}

// Load reads configuration from file with environment variable overrides.
func Load(configPath string) (cfg Config, err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		err = errors.Errorf("config file not found: %s (run 'resume-forge init' to create)", path)
		return cfg, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	for key, env := range map[string]string{
		"anthropic_api_key": "ANTHROPIC_API_KEY",
		"gemini_api_key":    "GEMINI_API_KEY",
		"database_url":      "RESUME_FORGE_DATABASE_URL",
		"provider":          "RESUME_FORGE_PROVIDER",
	} {
		err = v.BindEnv(key, env)
		if err != nil {
			err = errors.Wrapf(err, "failed to bind %s", env)
			return cfg, err
		}
	}

	err = v.ReadInConfig()
	if err != nil {
		err = errors.Wrapf(err, "failed to read config file: %s", path)
		return cfg, err
	}

	err = v.Unmarshal(&cfg)
	if err != nil {
		err = errors.Wrapf(err, "failed to parse config file: %s", path)
		return cfg, err
	}

	err = cfg.resolveSecrets()
	if err != nil {
		return cfg, err
	}

	err = cfg.Validate()
	if err != nil {
		err = errors.Wrap(err, "config validation failed")
		return cfg, err
	}

	return cfg, err
}

// resolveSecrets reads API keys from their *_file paths. A file takes precedence over an inline value.
func (c *Config) resolveSecrets() (err error) {
	c.AnthropicAPIKey, err = loadSecret("anthropic_api_key", c.AnthropicAPIKey, c.AnthropicAPIKeyFile)
	if err != nil {
		return err
	}

	c.GeminiAPIKey, err = loadSecret("gemini_api_key", c.GeminiAPIKey, c.GeminiAPIKeyFile)
	return err
}

func loadSecret(name, value, file string) (secret string, err error) {
	secret = strings.TrimSpace(value)

	file = strings.TrimSpace(file)
	if file == "" {
		return secret, err
	}

	var data []byte
	data, err = os.ReadFile(file)
	if err != nil {
		err = errors.Wrapf(err, "reading %s from file %q", name, file)
		return secret, err
	}

	secret = strings.TrimSpace(string(data))
	if secret == "" {
		err = errors.Errorf("%s file %q is empty", name, file)
	}

	return secret, err
}

// Validate checks that all required configuration is present and fills defaults.
func (c *Config) Validate() (err error) {
	if c.Provider == "" {
		c.Provider = ProviderClaude
	}

	err = validator.New().Struct(c)
	if err != nil {
		err = errors.Wrap(err, "invalid config")
		return err
	}

	if c.APIKey() == "" {
		if c.Provider == ProviderGemini {
			err = errors.New("gemini_api_key is required (set in config or GEMINI_API_KEY env var)")
			return err
		}
		err = errors.New("anthropic_api_key is required (set in config or ANTHROPIC_API_KEY env var)")
		return err
	}

	_, err = os.Stat(c.ProfilePath)
	if os.IsNotExist(err) {
		err = errors.Errorf("profile file not found: %s", c.ProfilePath)
		return err
	}
	err = nil

	c.applyDefaults()

	return err
}

func (c *Config) applyDefaults() {
	if c.Defaults.OutputDir == "" {
		c.Defaults.OutputDir = "./applications"
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.Defaults.OutputDir, ".resume-forge")
	}
	if c.Defaults.MaxRoles == 0 {
		c.Defaults.MaxRoles = defaultMaxRoles
	}
	if c.Defaults.MaxAttempts == 0 {
		c.Defaults.MaxAttempts = defaultMaxAttempts
	}
	if c.Defaults.Person == "" {
		c.Defaults.Person = "first"
	}
	if c.Defaults.Mode == "" {
		c.Defaults.Mode = "ic"
	}
	if c.Defaults.Format == "" {
		c.Defaults.Format = FormatStandard
	}
}

// InitConfig creates a default configuration file.
func InitConfig(configPath string) (err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create config directory: %s", dir)
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		err = errors.Errorf("config file already exists: %s", path)
		return err
	}

	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return err
	}

	defaultConfig := Config{
		Name:            "your-name",
		Provider:        ProviderClaude,
		AnthropicAPIKey: "sk-ant-api03-...",
		ProfilePath:     filepath.Join(homeDir, ".resume-forge", "profile.md"),
		DataDir:         filepath.Join(homeDir, ".resume-forge", "data"),
		CompaniesDir:    filepath.Join(homeDir, ".resume-forge", "companies"),
		Pandoc: PandocConfig{
			TemplatePath: filepath.Join(homeDir, ".resume-forge", "resume-template.latex"),
			ClassFile:    filepath.Join(homeDir, ".resume-forge", "resume.cls"),
		},
		Defaults: DefaultConfig{
			OutputDir:   filepath.Join(homeDir, "Documents", "Applications"),
			MaxRoles:    defaultMaxRoles,
			MaxAttempts: defaultMaxAttempts,
			Person:      "first",
			Mode:        "ic",
			Format:      FormatStandard,
		},
	}

	var data []byte
	data, err = json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal default config")
		return err
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write config file: %s", path)
		return err
	}

	return err
}
