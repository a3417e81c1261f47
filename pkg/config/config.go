package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Scoring  ScoringConfig
	Outreach OutreachConfig
	LLM      LLMConfig
	Jobs     JobsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
}

type SQLiteConfig struct {
	Path string
}

type ScoringConfig struct {
	ModelPath     string
	BackupDir     string
	StalenessDays int
}

type OutreachConfig struct {
	SequenceGapDays int
	SenderName      string
	ProductName     string
}

type LLMConfig struct {
	APIKey     string
	Model      string
	TimeoutSec int
}

type JobsConfig struct {
	CrawlIntervalMin      int
	ScoringIntervalMin    int
	OutreachIntervalMin   int
	ComplianceIntervalMin int
	RefinementIntervalMin int
	RescoringIntervalMin  int
	HealthIntervalMin     int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/email-agent")

	viper.SetEnvPrefix("EMAIL_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8085)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)

	viper.SetDefault("sqlite.path", "./data/prospects.db")

	viper.SetDefault("scoring.modelPath", "./scoring_model.json")
	viper.SetDefault("scoring.backupDir", "./data/config_history")
	viper.SetDefault("scoring.stalenessDays", 7)

	viper.SetDefault("outreach.sequenceGapDays", 3)
	viper.SetDefault("outreach.senderName", "Kwstas")
	viper.SetDefault("outreach.productName", "Engram")

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("jobs.crawlIntervalMin", 60)
	viper.SetDefault("jobs.scoringIntervalMin", 30)
	viper.SetDefault("jobs.outreachIntervalMin", 120)
	viper.SetDefault("jobs.complianceIntervalMin", 60)
	viper.SetDefault("jobs.refinementIntervalMin", 1440)
	viper.SetDefault("jobs.rescoringIntervalMin", 360)
	viper.SetDefault("jobs.healthIntervalMin", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
