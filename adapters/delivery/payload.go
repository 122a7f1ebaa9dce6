package invoicedelivery

import (
	"encoding/json"

	"github.com/goliatone/go-invoice/invoice"
	job "github.com/goliatone/go-job"
)

// Payload carries a queued invoice send.
type Payload struct {
	InvoiceID string               `json:"invoice_id"`
	Template  invoice.TemplateName `json:"template,omitempty"`
}

func encodePayload(payload Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, invoice.NewError(invoice.KindValidation, "payload is not serializable", err)
	}
	return json.RawMessage(raw), nil
}

func decodePayload(msg *job.ExecutionMessage) (Payload, error) {
	if msg == nil || msg.Parameters == nil {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is required", nil)
	}

	raw, ok := msg.Parameters["payload"]
	if !ok {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload missing", nil)
	}

	switch value := raw.(type) {
	case Payload:
		return value, nil
	case *Payload:
		if value == nil {
			return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is nil", nil)
		}
		return *value, nil
	case json.RawMessage:
		return unmarshalPayload(value)
	case []byte:
		return unmarshalPayload(value)
	case string:
		return unmarshalPayload([]byte(value))
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is invalid", err)
		}
		return unmarshalPayload(data)
	}
}

func unmarshalPayload(data []byte) (Payload, error) {
	if len(data) == 0 {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is empty", nil)
	}
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload is invalid", err)
	}
	if payload.InvoiceID == "" {
		return Payload{}, invoice.NewError(invoice.KindValidation, "job payload has no invoice id", nil)
	}
	return payload, nil
}
