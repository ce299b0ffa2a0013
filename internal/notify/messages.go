package notify

import (
	"fmt"

	"order-agent/internal/models"
)

// StatusMessage renders the customer-facing WhatsApp text for a lifecycle
// transition. Returns "" for states the customer is not notified about
// (the conversation itself covers the awaiting_* stages).
func StatusMessage(status models.OrderStatus, deliveryType models.DeliveryType) string {
	switch status {
	case models.StatusSentToKitchen:
		return "✅ Pedido confirmado! Já enviamos para a cozinha."
	case models.StatusPreparing:
		return "👨‍🍳 Seu pedido está em preparo!"
	case models.StatusReady:
		if deliveryType == models.DeliveryTypePickup {
			return "🛍️ Seu pedido está pronto para retirada no balcão!"
		}
		return "📦 Seu pedido está pronto! Logo sairá para entrega."
	case models.StatusOutForDelivery:
		return "🛵 Seu pedido saiu para entrega!"
	case models.StatusCompleted:
		return "🎉 Pedido concluído. Obrigado pela preferência!"
	case models.StatusCancelled:
		return "❌ Seu pedido foi cancelado. Qualquer dúvida é só chamar."
	}
	return ""
}

// PaymentConfirmedMessage renders the payment confirmation text.
func PaymentConfirmedMessage(orderID string, amount float64) string {
	return fmt.Sprintf("💰 Pagamento de R$ %.2f confirmado para o pedido #%s! Seu pedido já foi para a cozinha.", amount, orderID)
}
