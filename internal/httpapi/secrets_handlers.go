package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"dealscan-engine/internal/config"
	"dealscan-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // config.Config
}

// SetDiscordWebhook stores the webhook URL in the OS keychain under the
// account named in the current config. The URL never touches the config file.
func (h SecretsHandler) SetDiscordWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WebhookURL string `json:"webhook_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, codeBadJSON, err.Error())
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	account := strings.TrimSpace(cfg.Notify.Discord.KeyringAccount)
	if account == "" {
		WriteError(w, r, http.StatusBadRequest, codeNoAccount, "notify.discord.keyring_account is not configured")
		return
	}

	if err := secrets.SetWebhookURL(account, body.WebhookURL); err != nil {
		WriteError(w, r, http.StatusInternalServerError, codeKeyring, err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}
