// Package secrets keeps the Discord webhook URL out of config files: the OS
// keychain is checked first, the plaintext config value is the fallback for
// headless deployments.
package secrets

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"

	"dealscan-engine/internal/config"
)

const KeyringService = "dealscan"

// GetWebhookURL resolves the Discord webhook: keyring first, then the
// plaintext config fallback.
func GetWebhookURL(dc config.DiscordConfig) (string, error) {
	if strings.TrimSpace(dc.KeyringAccount) != "" {
		url, err := keyring.Get(KeyringService, dc.KeyringAccount)
		if err == nil && strings.TrimSpace(url) != "" {
			return url, nil
		}
	}
	if strings.TrimSpace(dc.WebhookURL) != "" {
		return dc.WebhookURL, nil
	}
	return "", errors.New("discord webhook URL not found (set it in the keychain or in config)")
}

func SetWebhookURL(keyringAccount, url string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(url) == "" {
		return errors.New("webhook URL is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, url)
}

func DeleteWebhookURL(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}
