package config

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type SecretsConfig struct {
	KeychainFile string `mapstructure:"keychain_file"`
	Key          string `mapstructure:"key"`
	EnvPrefix    string `mapstructure:"env_prefix"`
}

type RunnerConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Secrets SecretsConfig `mapstructure:"secrets"`
	Runner  RunnerConfig  `mapstructure:"runner"`
}
