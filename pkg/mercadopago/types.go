package mercadopago

// PreferenceItem is one line of a checkout preference.
type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// BackURLs carries the redirect targets after checkout completes.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Pending string `json:"pending,omitempty"`
	Failure string `json:"failure,omitempty"`
}

// PreferenceRequest is the payload for a one-time checkout preference.
type PreferenceRequest struct {
	Items             []PreferenceItem  `json:"items"`
	ExternalReference string            `json:"external_reference,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	BackURLs          *BackURLs         `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
}

// Preference is the provider's representation of a created preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// PreapprovalRequest attaches a payer to an existing recurring plan.
type PreapprovalRequest struct {
	PreapprovalPlanID string `json:"preapproval_plan_id"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference,omitempty"`
	Reason            string `json:"reason,omitempty"`
	BackURL           string `json:"back_url,omitempty"`
	Status            string `json:"status,omitempty"`
}

// Preapproval is the provider's representation of a recurring subscription.
type Preapproval struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	InitPoint         string `json:"init_point"`
	PayerEmail        string `json:"payer_email"`
	ExternalReference string `json:"external_reference"`
	PreapprovalPlanID string `json:"preapproval_plan_id"`
}

// Payment is the subset of the payment resource the webhook and
// reconciliation paths read.
type Payment struct {
	ID                int64             `json:"id"`
	Status            string            `json:"status"`
	StatusDetail      string            `json:"status_detail"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]any    `json:"metadata"`
	TransactionAmount float64           `json:"transaction_amount"`
	CurrencyID        string            `json:"currency_id"`
	DateCreated       string            `json:"date_created"`
	DateApproved      string            `json:"date_approved"`
	Payer             PaymentPayer      `json:"payer"`
}

// PaymentPayer identifies who paid.
type PaymentPayer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Payment statuses the status mapper understands.
const (
	PaymentStatusApproved  = "approved"
	PaymentStatusPending   = "pending"
	PaymentStatusInProcess = "in_process"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// WebhookNotification is the minimal shape Mercado Pago posts to the webhook
// endpoint. Only type=payment notifications carry a usable data id.
type WebhookNotification struct {
	ID          int64       `json:"id"`
	Type        string      `json:"type"`
	Action      string      `json:"action"`
	DateCreated string      `json:"date_created"`
	Data        WebhookData `json:"data"`
}

type WebhookData struct {
	ID string `json:"id"`
}
