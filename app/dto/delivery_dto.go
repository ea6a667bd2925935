package dto

// DeliveryReceiptRequest is the callback body posted by the automation
// platform when WhatsApp confirms a message was delivered
type DeliveryReceiptRequest struct {
	TrackingID string `json:"tracking_id" validate:"required,uuid4"`
}

// DeliveryReceiptResponse represents the response to a delivery receipt
type DeliveryReceiptResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
