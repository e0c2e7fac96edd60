package notify

import (
	"fmt"
	"strings"

	"github.com/safar/go-shop-bot/internal/models"
)

const StartupMessage = "🤖 Bot is up and ready to take orders!"

// FormatOrder renders the new-order alert sent to administrators.
func FormatOrder(d *models.OrderDetails) string {
	var b strings.Builder

	b.WriteString("🛒 New order!\n\n")
	fmt.Fprintf(&b, "🧾 Order: %s\n", d.OrderNumber)
	fmt.Fprintf(&b, "👤 User: %s\n", d.Username)
	fmt.Fprintf(&b, "🆔 ID: %d\n\n", d.ExternalID)
	b.WriteString("📦 Items:\n")

	for _, line := range d.Lines {
		fmt.Fprintf(&b, "• %s x%d - %s₽\n", line.Name, line.Quantity, line.UnitPrice.StringFixed(2))
	}

	fmt.Fprintf(&b, "\n💰 Total: %s₽", d.Total().StringFixed(2))
	return b.String()
}
