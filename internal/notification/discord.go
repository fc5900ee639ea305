package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/terralens/terralens-mosaic-poc/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

func SendDiscordErrorNotification(errorMessage string) error {
	message := DiscordMessage{
		Embeds: []DiscordEmbed{
			{
				Title:       "🚨 Mosaic run failed",
				Description: fmt.Sprintf("An error occurred while building composites:\n\n%s", errorMessage),
				Color:       16711680, // Red color
			},
		},
	}
	return sendDiscordNotification(properties.DiscordErrorNotificationUrl(), message)
}

func SendDiscordSuccessNotification(successMessage string) error {
	message := DiscordMessage{
		Embeds: []DiscordEmbed{
			{
				Title:       "✅ Mosaic run complete",
				Description: successMessage,
				Color:       65280, // Green color
			},
		},
	}
	return sendDiscordNotification(properties.DiscordSuccessNotificationUrl(), message)
}

func sendDiscordNotification(url string, message DiscordMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
