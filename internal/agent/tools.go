// Package agent exposes the conversational tool contract: the operations the
// assistant invokes on behalf of a customer. Every tool converts failures
// into a customer-facing Message instead of surfacing internals; only
// infrastructure errors propagate.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"order-agent/internal/delivery"
	"order-agent/internal/models"
	"order-agent/internal/order"
	"order-agent/internal/payment"
	"order-agent/internal/redisclient"
	"order-agent/internal/resolver"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// CustomerStore persists customer identity.
type CustomerStore interface {
	GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error)
	UpsertCustomer(ctx context.Context, customer *models.Customer) error
}

// SessionStore holds conversation sessions and tool-call dedup claims.
// Satisfied by redisclient.Client.
type SessionStore interface {
	GetSession(ctx context.Context, phone string) (*redisclient.Session, error)
	SaveSession(ctx context.Context, session *redisclient.Session) error
	ClaimToolCall(ctx context.Context, callID string) (bool, error)
}

// Result is the uniform tool response. Message is always safe to relay to
// the customer verbatim.
type Result struct {
	OK               bool              `json:"ok"`
	Duplicate        bool              `json:"duplicado,omitempty"`
	NeedConfirmation bool              `json:"precisa_confirmacao,omitempty"`
	Message          string            `json:"mensagem"`
	Order            *models.Order     `json:"pedido,omitempty"`
	Outcome          *resolver.Outcome `json:"detalhes,omitempty"`
}

// Tools wires the tool contract over the domain services.
type Tools struct {
	resolver  *resolver.Resolver
	orders    *order.Accumulator
	quoter    *delivery.Quoter
	payments  *payment.Client
	customers CustomerStore
	sessions  SessionStore
	logger    *zap.Logger
}

func NewTools(
	res *resolver.Resolver,
	orders *order.Accumulator,
	quoter *delivery.Quoter,
	payments *payment.Client,
	customers CustomerStore,
	sessions SessionStore,
	logger *zap.Logger,
) *Tools {
	return &Tools{
		resolver:  res,
		orders:    orders,
		quoter:    quoter,
		payments:  payments,
		customers: customers,
		sessions:  sessions,
		logger:    logger,
	}
}

// ProcessOrderRequest carries one customer utterance.
type ProcessOrderRequest struct {
	CallID string `json:"call_id" binding:"required"`
	Phone  string `json:"telefone" binding:"required"`
	Name   string `json:"nome"`
	Text   string `json:"texto" binding:"required"`
}

// ProcessOrder parses the utterance, validates it against the catalog and
// merges the items into the customer's open order. Replaying the same CallID
// returns the current order without mutating anything.
func (t *Tools) ProcessOrder(ctx context.Context, req *ProcessOrderRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.ProcessOrder")
	defer span.End()

	if dup := t.claimCall(ctx, req.CallID); dup {
		existing, err := t.orders.FindOpen(ctx, req.Phone)
		if err != nil {
			return nil, err
		}
		t.logger.Info("Duplicate tool call", zap.String("call_id", req.CallID))
		return &Result{
			OK:        existing != nil,
			Duplicate: true,
			Message:   "Esse pedido já foi registrado.",
			Order:     existing,
		}, nil
	}

	t.ensureCustomer(ctx, req.Phone, req.Name)
	return t.processText(ctx, req.Phone, req.Name, req.Text, false)
}

// ensureCustomer registers first contact. Without a name the customer stays
// in the awaiting-identification state until UpdateCustomerName runs.
func (t *Tools) ensureCustomer(ctx context.Context, phone, name string) {
	existing, err := t.customers.GetCustomerByPhone(ctx, phone)
	if err != nil {
		t.logger.Warn("Failed to look up customer", zap.String("phone", phone), zap.Error(err))
		return
	}
	if existing != nil && (name == "" || existing.Name == name) {
		return
	}

	status := models.CustomerStatusActive
	if name == "" {
		status = models.CustomerStatusAwaitingName
	}
	if err := t.customers.UpsertCustomer(ctx, &models.Customer{
		Phone:  phone,
		Name:   name,
		Status: status,
	}); err != nil {
		t.logger.Warn("Failed to register customer", zap.String("phone", phone), zap.Error(err))
	}
}

func (t *Tools) processText(ctx context.Context, phone, name, text string, confirmed bool) (*Result, error) {
	var (
		outcome *resolver.Outcome
		err     error
	)
	if confirmed {
		outcome, err = t.resolver.ResolveConfirmed(ctx, text)
	} else {
		outcome, err = t.resolver.Resolve(ctx, text)
	}
	if err != nil {
		return nil, err
	}

	if !outcome.OK {
		if outcome.NeedConfirmation {
			t.savePendingText(ctx, phone, text)
		} else {
			util.OrdersFailedTotal.WithLabelValues("not_found").Inc()
		}
		return &Result{
			OK:               false,
			NeedConfirmation: outcome.NeedConfirmation,
			Message:          outcome.Message,
			Outcome:          outcome,
		}, nil
	}

	placed, created, err := t.orders.Submit(ctx, name, phone, outcome.Items)
	if err != nil {
		return nil, err
	}

	t.saveSession(ctx, &redisclient.Session{
		Phone:         phone,
		Name:          name,
		ActiveOrderID: placed.ID,
	})

	return &Result{
		OK:      true,
		Message: orderSummaryMessage(placed, created),
		Order:   placed,
		Outcome: outcome,
	}, nil
}

// CalculateDeliveryRequest asks for a delivery quote on an open order.
type CalculateDeliveryRequest struct {
	OrderID string `json:"id_pedido" binding:"required"`
	Address string `json:"endereco" binding:"required"`
}

// CalculateDelivery quotes the address and locks in delivery for the order.
func (t *Tools) CalculateDelivery(ctx context.Context, req *CalculateDeliveryRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.CalculateDelivery")
	defer span.End()

	quote, err := t.quoter.QuoteAddress(ctx, req.Address)
	if err != nil {
		t.logger.Warn("Delivery quote failed", zap.String("address", req.Address), zap.Error(err))
		return &Result{
			OK:      false,
			Message: "Não consegui localizar esse endereço. Pode confirmar rua, número e bairro?",
		}, nil
	}

	updated, err := t.orders.SetDelivery(ctx, req.OrderID, quote.Address, quote.DistanceKm, quote.ETA, quote.Fee)
	if err != nil {
		return t.orderFailure(err)
	}

	msg := fmt.Sprintf(
		"🛵 Entrega para %s\nDistância: %.1f km • Tempo estimado: %s\nTaxa de entrega: R$ %.2f\nTotal do pedido: R$ %.2f\n\nComo prefere pagar? Cartão, Pix ou dinheiro?",
		quote.Address, quote.DistanceKm, quote.ETA, quote.Fee, updated.TotalFinal)
	return &Result{OK: true, Message: msg, Order: updated}, nil
}

// ProcessPickupRequest marks the order for counter pickup.
type ProcessPickupRequest struct {
	OrderID string `json:"id_pedido" binding:"required"`
}

// ProcessPickup marks the order for pickup at the counter, fee-free.
func (t *Tools) ProcessPickup(ctx context.Context, req *ProcessPickupRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.ProcessPickup")
	defer span.End()

	updated, err := t.orders.SetPickup(ctx, req.OrderID)
	if err != nil {
		return t.orderFailure(err)
	}

	msg := fmt.Sprintf(
		"🛍️ Retirada no balcão confirmada!\nTotal do pedido: R$ %.2f\n\nComo prefere pagar? Cartão, Pix ou dinheiro?",
		updated.TotalFinal)
	return &Result{OK: true, Message: msg, Order: updated}, nil
}

// CreateChargeRequest generates a card or pix charge for the order.
type CreateChargeRequest struct {
	OrderID string               `json:"id_pedido" binding:"required"`
	Method  models.PaymentMethod `json:"forma_pagamento" binding:"required"`
}

// CreateCharge generates a charge and attaches it to the order, closing it to
// further item accumulation.
func (t *Tools) CreateCharge(ctx context.Context, req *CreateChargeRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.CreateCharge")
	defer span.End()

	o, err := t.orders.Get(ctx, req.OrderID)
	if err != nil {
		return t.orderFailure(err)
	}
	// Checked up front so a rejected transition never leaves an orphan charge
	// at the provider.
	if !o.Status.CanTransition(models.StatusAwaitingPayment) {
		return t.orderFailure(&order.InvalidTransitionError{From: o.Status, To: models.StatusAwaitingPayment})
	}

	charge, err := t.payments.CreateCharge(ctx, o, req.Method)
	if err != nil {
		t.logger.Error("Charge creation failed", zap.String("order_id", req.OrderID), zap.Error(err))
		return &Result{
			OK:      false,
			Message: "Não consegui gerar a cobrança agora. Pode tentar de novo em instantes?",
		}, nil
	}

	link := charge.InvoiceURL
	if req.Method == models.PaymentMethodPix && charge.PixQrCode != "" {
		link = charge.PixQrCode
	}
	updated, err := t.orders.RegisterCharge(ctx, req.OrderID, req.Method, charge.ID, link)
	if err != nil {
		return t.orderFailure(err)
	}

	msg := fmt.Sprintf(
		"💳 Cobrança gerada!\nValor: R$ %.2f\nPague por aqui: %s\n\nAssim que o pagamento for confirmado, seu pedido vai direto para a cozinha.",
		updated.TotalFinal, link)
	return &Result{OK: true, Message: msg, Order: updated}, nil
}

// ProcessCashPaymentRequest records payment in cash on delivery/pickup.
type ProcessCashPaymentRequest struct {
	OrderID  string  `json:"id_pedido" binding:"required"`
	Tendered float64 `json:"valor_recebido" binding:"required"`
}

// ProcessCashPayment records the tendered amount and computes change. A value
// below the total is rejected without touching the order.
func (t *Tools) ProcessCashPayment(ctx context.Context, req *ProcessCashPaymentRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.ProcessCashPayment")
	defer span.End()

	updated, err := t.orders.PayCash(ctx, req.OrderID, req.Tendered)
	if err != nil {
		var shortfall *order.ShortfallError
		if errors.As(err, &shortfall) {
			return &Result{
				OK: false,
				Message: fmt.Sprintf("O valor informado não cobre o pedido. Faltam R$ %.2f (total R$ %.2f).",
					shortfall.Missing(), shortfall.Due),
			}, nil
		}
		return t.orderFailure(err)
	}

	msg := fmt.Sprintf(
		"💵 Pagamento em dinheiro anotado!\nTotal: R$ %.2f • Recebido: R$ %.2f • Troco: R$ %.2f\n\nSeu pedido já foi para a cozinha. ✅",
		updated.TotalFinal, updated.CashReceived, updated.CashChange)
	return &Result{OK: true, Message: msg, Order: updated}, nil
}

// ConfirmOrderRequest confirms the customer's pending order or suggestion.
type ConfirmOrderRequest struct {
	Phone string `json:"telefone" binding:"required"`
}

// ConfirmOrder resolves a pending confirmation: when a previous utterance was
// held back waiting on a low-confidence guess, it is re-processed accepting
// the guess; otherwise the open order is just marked confirmed.
func (t *Tools) ConfirmOrder(ctx context.Context, req *ConfirmOrderRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.ConfirmOrder")
	defer span.End()

	session := t.loadSession(ctx, req.Phone)
	if session != nil && session.PendingText != "" {
		text := session.PendingText
		session.PendingText = ""
		t.saveSession(ctx, session)
		return t.processText(ctx, req.Phone, session.Name, text, true)
	}

	open, err := t.orders.FindOpen(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return &Result{
			OK:      false,
			Message: "Não encontrei um pedido aberto para confirmar. Quer fazer um novo pedido?",
		}, nil
	}

	confirmed, err := t.orders.MarkConfirmed(ctx, open.ID)
	if err != nil {
		return t.orderFailure(err)
	}
	return &Result{
		OK:      true,
		Message: fmt.Sprintf("Pedido #%s confirmado! Deseja entrega ou retirada no balcão?", confirmed.ID),
		Order:   confirmed,
	}, nil
}

// UpdateCustomerNameRequest records or fixes the customer's name.
type UpdateCustomerNameRequest struct {
	Phone string `json:"telefone" binding:"required"`
	Name  string `json:"nome" binding:"required"`
}

// UpdateCustomerName creates the customer on first contact or renames an
// existing one, marking identification as complete.
func (t *Tools) UpdateCustomerName(ctx context.Context, req *UpdateCustomerNameRequest) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Tools.UpdateCustomerName")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return &Result{OK: false, Message: "Não entendi o nome. Pode repetir?"}, nil
	}

	customer := &models.Customer{
		Phone:  req.Phone,
		Name:   name,
		Status: models.CustomerStatusActive,
	}
	if err := t.customers.UpsertCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to save customer: %w", err)
	}

	if session := t.loadSession(ctx, req.Phone); session != nil {
		session.Name = name
		t.saveSession(ctx, session)
	} else {
		t.saveSession(ctx, &redisclient.Session{Phone: req.Phone, Name: name})
	}

	return &Result{
		OK:      true,
		Message: fmt.Sprintf("Prazer, %s! 😊 O que vai pedir hoje?", name),
	}, nil
}

// orderFailure maps accumulator errors onto customer-facing messages.
func (t *Tools) orderFailure(err error) (*Result, error) {
	if errors.Is(err, order.ErrNotFound) {
		return &Result{OK: false, Message: "Não encontrei esse pedido. Pode conferir o número?"}, nil
	}
	var transition *order.InvalidTransitionError
	if errors.As(err, &transition) {
		return &Result{
			OK:      false,
			Message: fmt.Sprintf("Esse pedido está em \"%s\" e não aceita essa ação agora.", transition.From.Label()),
		}, nil
	}
	return nil, err
}

// claimCall claims the tool-call id for dedup. Redis being down degrades to
// processing the call, logged, matching the store-falls-back stance.
func (t *Tools) claimCall(ctx context.Context, callID string) bool {
	if t.sessions == nil || callID == "" {
		return false
	}
	first, err := t.sessions.ClaimToolCall(ctx, callID)
	if err != nil {
		t.logger.Warn("Tool-call dedup unavailable, processing anyway", zap.Error(err))
		return false
	}
	return !first
}

func (t *Tools) loadSession(ctx context.Context, phone string) *redisclient.Session {
	if t.sessions == nil {
		return nil
	}
	session, err := t.sessions.GetSession(ctx, phone)
	if err != nil {
		t.logger.Warn("Failed to load session", zap.String("phone", phone), zap.Error(err))
		return nil
	}
	return session
}

func (t *Tools) saveSession(ctx context.Context, session *redisclient.Session) {
	if t.sessions == nil || session == nil {
		return
	}
	if err := t.sessions.SaveSession(ctx, session); err != nil {
		t.logger.Warn("Failed to save session", zap.String("phone", session.Phone), zap.Error(err))
	}
}

func (t *Tools) savePendingText(ctx context.Context, phone, text string) {
	session := t.loadSession(ctx, phone)
	if session == nil {
		session = &redisclient.Session{Phone: phone}
	}
	session.PendingText = text
	t.saveSession(ctx, session)
}

// orderSummaryMessage renders the order recap sent after items are merged.
func orderSummaryMessage(o *models.Order, created bool) string {
	var b strings.Builder
	if created {
		fmt.Fprintf(&b, "🍔 Pedido #%s registrado!\n\n", o.ID)
	} else {
		fmt.Fprintf(&b, "🍔 Pedido #%s atualizado!\n\n", o.ID)
	}
	for _, item := range o.Items {
		fmt.Fprintf(&b, "%d. %s", item.ItemID, item.Product)
		if len(item.AddOns) > 0 {
			names := make([]string, len(item.AddOns))
			for i, ad := range item.AddOns {
				names[i] = ad.Name
			}
			fmt.Fprintf(&b, " com %s", strings.Join(names, ", "))
		}
		if item.Notes != "" {
			fmt.Fprintf(&b, " (%s)", item.Notes)
		}
		fmt.Fprintf(&b, " - R$ %.2f\n", item.Subtotal)
	}
	fmt.Fprintf(&b, "\nTotal: R$ %.2f\n", o.Total)
	if o.Status == models.StatusAwaitingDeliveryType {
		b.WriteString("\nDeseja entrega ou retirada no balcão?")
	}
	return b.String()
}
