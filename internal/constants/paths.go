package constants

// DefaultEnvPath is the .env file loaded before the config.
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the config file used when --config is not given.
const DefaultConfigPath = "./config.toml"

// LogFileName receives logs while the terminal UI owns the screen.
const LogFileName = "pilobster.log"
