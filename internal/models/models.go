package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AddOn is an extra that can be attached to a product, priced on top of the
// product's base price.
type AddOn struct {
	Name  string  `json:"nome"`
	Price float64 `json:"valor"`
}

// Product is a catalog entry. The catalog is administered elsewhere; this
// service only reads it.
type Product struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"nome"`
	Category  string    `db:"category" json:"categoria"`
	Price     float64   `db:"price" json:"preco"`
	Available bool      `db:"available" json:"disponivel"`
	AddOns    AddOnList `db:"addons" json:"adicionais"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

// OrderItem is a single validated unit inside an order. Quantity N in the
// customer's utterance expands into N items, each with quantity 1, so the
// kitchen sees one line per unit.
type OrderItem struct {
	ItemID      int       `json:"item_id"`
	ProductID   string    `json:"produto_id"`
	Product     string    `json:"produto"`
	UnitPrice   float64   `json:"valor_unitario"`
	AddOns      AddOnList `json:"adicionais"`
	Notes       string    `json:"observacoes"`
	Subtotal    float64   `json:"subtotal"`
	PartialSpec bool      `json:"especificacao_parcial"`
}

// StatusChange is one entry of an order's append-only status history.
type StatusChange struct {
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"data"`
	Description string      `json:"descricao"`
}

// Summaries holds the per-audience text lines regenerated whenever the item
// list changes.
type Summaries struct {
	Kitchen []string `json:"resumo_cozinha"`
	Cashier []string `json:"resumo_caixa"`
	Courier []string `json:"resumo_entregador"`
}

type DeliveryType string

const (
	DeliveryTypeUnset    DeliveryType = ""
	DeliveryTypePickup   DeliveryType = "retirada"
	DeliveryTypeDelivery DeliveryType = "entrega"
)

type PaymentMethod string

const (
	PaymentMethodUnset PaymentMethod = ""
	PaymentMethodCard  PaymentMethod = "cartao"
	PaymentMethodPix   PaymentMethod = "pix"
	PaymentMethodCash  PaymentMethod = "dinheiro"
)

// Order is the accumulated order for one customer conversation.
type Order struct {
	ID                 string        `db:"id" json:"id_pedido"`
	CustomerName       string        `db:"customer_name" json:"cliente_nome"`
	CustomerPhone      string        `db:"customer_phone" json:"cliente_telefone"`
	Items              ItemList      `db:"items" json:"itens"`
	Total              float64       `db:"total" json:"valor_total"`
	Status             OrderStatus   `db:"status" json:"status"`
	DeliveryType       DeliveryType  `db:"delivery_type" json:"tipo_entrega"`
	DeliveryAddress    string        `db:"delivery_address" json:"endereco_entrega"`
	DeliveryDistanceKm float64       `db:"delivery_distance_km" json:"distancia_km"`
	DeliveryETA        string        `db:"delivery_eta" json:"tempo_estimado"`
	DeliveryFee        float64       `db:"delivery_fee" json:"valor_entrega"`
	TotalFinal         float64       `db:"total_final" json:"valor_total_final"`
	PaymentMethod      PaymentMethod `db:"payment_method" json:"forma_pagamento"`
	CashReceived       float64       `db:"cash_received" json:"valor_recebido"`
	CashChange         float64       `db:"cash_change" json:"troco"`
	ChargeID           string        `db:"charge_id" json:"cobranca_id"`
	PaymentLink        string        `db:"payment_link" json:"link_pagamento"`
	History            HistoryList   `db:"history" json:"historico_status"`
	Summaries          SummaryDoc    `db:"summaries" json:"estrutura_detalhada"`
	CreatedAt          time.Time     `db:"created_at" json:"data_criacao"`
	UpdatedAt          time.Time     `db:"updated_at" json:"data_atualizacao"`
}

// Customer identity keyed by phone number. Orders carry a denormalized copy
// of name/phone so history stays readable after renames.
type Customer struct {
	Phone           string    `db:"phone" json:"telefone"`
	Name            string    `db:"name" json:"nome"`
	Status          string    `db:"status" json:"status"`
	FirstContact    time.Time `db:"first_contact" json:"data_criacao"`
	LastInteraction time.Time `db:"last_interaction" json:"ultima_interacao"`
}

// Customer identification statuses.
const (
	CustomerStatusAwaitingName = "aguardando_nome"
	CustomerStatusActive       = "ativo"
)

// jsonbValue / jsonbScan implement the pq JSONB round trip shared by the
// wrapper types below.

func jsonbValue(v interface{}) (driver.Value, error) {
	return json.Marshal(v)
}

func jsonbScan(src, dst interface{}) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

type AddOnList []AddOn

func (l AddOnList) Value() (driver.Value, error) { return jsonbValue([]AddOn(l)) }
func (l *AddOnList) Scan(src interface{}) error  { return jsonbScan(src, (*[]AddOn)(l)) }

type ItemList []OrderItem

func (l ItemList) Value() (driver.Value, error) { return jsonbValue([]OrderItem(l)) }
func (l *ItemList) Scan(src interface{}) error  { return jsonbScan(src, (*[]OrderItem)(l)) }

type HistoryList []StatusChange

func (l HistoryList) Value() (driver.Value, error) { return jsonbValue([]StatusChange(l)) }
func (l *HistoryList) Scan(src interface{}) error  { return jsonbScan(src, (*[]StatusChange)(l)) }

// SummaryDoc wraps Summaries for JSONB storage.
type SummaryDoc struct {
	Summaries
}

func (s SummaryDoc) Value() (driver.Value, error) { return jsonbValue(s.Summaries) }
func (s *SummaryDoc) Scan(src interface{}) error  { return jsonbScan(src, &s.Summaries) }

// ProcessedEvent marks an externally-delivered event as handled, for
// webhook/consumer idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
