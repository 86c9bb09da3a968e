package finntra

// DefaultCurrency is the display currency of users without settings.
const DefaultCurrency = "USD"

// Settings holds the per-user display preferences.
type Settings struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

// DefaultSettings returns the settings used when a user has none stored.
func DefaultSettings(userID string) Settings {
	return Settings{UserID: userID, Currency: DefaultCurrency}
}
