package config

func (c *Config) GetBotToken() string {
	return c.v.GetString("bot_token")
}

func (c *Config) GetGuildID() string {
	return c.v.GetString("guild_id")
}

func (c *Config) GetApplicationID() string {
	return c.v.GetString("application_id")
}

// GetGlobalCommands reports whether commands are registered globally instead of per guild
func (c *Config) GetGlobalCommands() bool {
	return c.flag("global_commands")
}

// GetEphemeralReplies reports whether rename confirmations are only shown to the requester
func (c *Config) GetEphemeralReplies() bool {
	return c.flag("ephemeral_replies")
}

// GetNotificationChannel returns the name of the channel rename notices are posted to.
// Empty disables notifications.
func (c *Config) GetNotificationChannel() string {
	return c.v.GetString("notification_channel")
}

// Tracing
// -----

func (c *Config) GetHoneycombAPIKey() string {
	return c.v.GetString("honeycomb_api_key")
}

func (c *Config) GetHoneycombDataset() string {
	return c.v.GetString("honeycomb_dataset")
}

func (c *Config) GetOTLPEndpoint() string {
	return c.v.GetString("otlp_endpoint")
}

func (c *Config) GetTraceExporter() string {
	return c.v.GetString("trace_exporter")
}

func (c *Config) GetServiceName() string {
	return c.v.GetString("service_name")
}

// Logging
// -----

// GetLogDir returns the directory holding the rotating log file
func (c *Config) GetLogDir() string {
	return c.v.GetString("log_dir")
}

func (c *Config) GetLogLevel() string {
	return c.v.GetString("log_level")
}
