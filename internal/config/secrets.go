package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg with every secret masked, for logging
// the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.News.NewsAPIKey)
	redact(&out.News.GNewsKey)

	for _, p := range []*ProviderConfig{
		&out.Providers.OpenAI,
		&out.Providers.DeepSeek,
		&out.Providers.Anthropic,
		&out.Providers.Gemini,
		&out.Providers.XAI,
	} {
		redact(&p.APIKey)
	}
	redact(&out.Providers.Bedrock.AccessKeyID)
	redact(&out.Providers.Bedrock.SecretAccessKey)
	redact(&out.Providers.Bedrock.SessionToken)
	redact(&out.Research.TavilyKey)

	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
