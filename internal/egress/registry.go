package egress

import "github.com/nirasova/ether-gateway/internal/contract"

// Handlers bundles the downstream handlers the routing table is built from.
type Handlers struct {
	Audit       Handler
	Exclusivity Handler
	Sova        Handler
}

// RegisterRoutes declares the routing table: which downstream systems see
// which event types. This is the single place routing intent lives.
func RegisterRoutes(r *Router, h Handlers) {
	// Merchant lifecycle
	r.Register(contract.EventMerchantCreated, h.Audit)
	r.Register(contract.EventMerchantUpdated, h.Audit)

	// Customer lifecycle
	r.Register(contract.EventCustomerUpserted, h.Audit)

	// Commerce / loyalty
	r.Register(contract.EventPurchaseRecorded, h.Exclusivity)
	r.Register(contract.EventLoyaltyLedgerMutated, h.Exclusivity)

	// AI
	r.Register(contract.EventAIInteraction, h.Sova)

	// System
	r.Register(contract.EventSystemAudit, h.Audit)
	r.Register(contract.EventSystemHealth, h.Audit)
}
