package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dealscan-engine/internal/domain"
)

// Discord posts one embed per listing to a webhook URL.
type Discord struct {
	webhookURL string
	username   string
	hc         *http.Client
}

func NewDiscord(webhookURL, username string) *Discord {
	if username == "" {
		username = "dealscan"
	}
	return &Discord{
		webhookURL: webhookURL,
		username:   username,
		hc:         &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Title       string              `json:"title"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Thumbnail   *discordImage       `json:"thumbnail,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

var levelColors = map[domain.AlertLevel]int{
	domain.AlertUrgent:      0xE74C3C,
	domain.AlertInteresting: 0xE67E22,
	domain.AlertWatch:       0x3498DB,
}

func (d *Discord) Send(ctx context.Context, l *domain.Listing) error {
	embed := discordEmbed{
		Title: fmt.Sprintf("[%d] %s", l.Score, l.Title),
		URL:   l.URL,
		Color: levelColors[l.AlertLevel],
	}

	addField := func(name, value string, inline bool) {
		if value != "" {
			embed.Fields = append(embed.Fields, discordEmbedField{Name: name, Value: value, Inline: inline})
		}
	}
	if l.Price > 0 {
		addField("Prix", fmt.Sprintf("%d €", l.Price), true)
	}
	if l.Mileage > 0 {
		addField("Km", fmt.Sprintf("%d km", l.Mileage), true)
	}
	if l.Year > 0 {
		addField("Année", fmt.Sprintf("%d", l.Year), true)
	}
	if l.City != "" {
		addField("Lieu", strings.TrimSpace(l.City+" "+l.PostalCode), true)
	}
	addField("Vendeur", string(l.SellerType), true)
	if l.Breakdown.MarginMin > 0 || l.Breakdown.MarginMax > 0 {
		addField("Marge estimée", fmt.Sprintf("%d-%d €", l.Breakdown.MarginMin, l.Breakdown.MarginMax), true)
	}
	if len(l.OpportunityIDs) > 0 {
		addField("Opportunités", strings.Join(l.OpportunityIDs, ", "), false)
	}
	if len(l.RiskIDs) > 0 {
		addField("Risques", strings.Join(l.RiskIDs, ", "), false)
	}
	if len(l.ImageURLs) > 0 {
		embed.Thumbnail = &discordImage{URL: l.ImageURLs[0]}
	}

	payload := discordPayload{Username: d.username, Embeds: []discordEmbed{embed}}
	if l.AlertLevel == domain.AlertUrgent {
		payload.Content = "@here bonne affaire détectée"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.hc.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status %d", res.StatusCode)
	}
	return nil
}
