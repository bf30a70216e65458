package config

// RedactedConfig returns a copy of cfg with secrets replaced by "***", safe
// to log.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// RPC URLs commonly embed a provider key (e.g. Infura project id).
	out.Rooms = make(map[string]RoomConfig, len(cfg.Rooms))
	for name, r := range cfg.Rooms {
		redact(&r.RPCURL)
		out.Rooms[name] = r
	}

	redact(&out.Sports.NBA.APIKey)
	redact(&out.Sports.NFL.APIKey)
	redact(&out.Sports.SportMonks.APIToken)

	redact(&out.Database.DSN)
	redact(&out.Database.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Sports.Leagues = append([]string(nil), cfg.Sports.Leagues...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	out.Scheduler.Rooms = append([]string(nil), cfg.Scheduler.Rooms...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)

	return out
}

const redacted = "***"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
