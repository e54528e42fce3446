package mailer

// Config holds outbound email configuration. The Postmark tokens are optional
// so development environments can fall back to DevSender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"notify@obsidian.uz"`
	SupportEmail         string `env:"SUPPORT_EMAIL" envDefault:"support@obsidian.uz"`
}
