package challenge

import (
	"encoding/json"
	"fmt"
)

// FlowPayload is the tagged union carried by a challenge. One variant per
// flow; the dispatcher type-switches over it, so a flow can only read the
// fields it declared.
type FlowPayload interface {
	Kind() FlowKind
}

type RegisterUserPayload struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	PhoneNumber  string `json:"phone_number"`
	Address      string `json:"address"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Role         string `json:"role"`
	Tenant       string `json:"tenant"`
}

func (RegisterUserPayload) Kind() FlowKind { return FlowRegisterUser }

type ChangeEmailPayload struct {
	CurrentEmail string `json:"current_email"`
	NewEmail     string `json:"new_email"`
	Tenant       string `json:"tenant"`
}

func (ChangeEmailPayload) Kind() FlowKind { return FlowChangeEmail }

type DeleteAccountPayload struct {
	Email  string `json:"email"`
	Tenant string `json:"tenant"`
}

func (DeleteAccountPayload) Kind() FlowKind { return FlowDeleteAccount }

type LegacyWebActivationPayload struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Tenant       string `json:"tenant"`
	Role         string `json:"role"`
}

func (LegacyWebActivationPayload) Kind() FlowKind { return FlowLegacyWebActivation }

type PasswordResetPayload struct {
	Email  string `json:"email"`
	Tenant string `json:"tenant"`
}

func (PasswordResetPayload) Kind() FlowKind { return FlowPasswordReset }

type payloadEnvelope struct {
	Kind FlowKind        `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func EncodePayload(p FlowPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	envelope, err := json.Marshal(payloadEnvelope{Kind: p.Kind(), Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to encode payload envelope: %w", err)
	}
	return string(envelope), nil
}

func DecodePayload(raw string) (FlowPayload, error) {
	var envelope payloadEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode payload envelope: %w", err)
	}

	var payload FlowPayload
	switch envelope.Kind {
	case FlowRegisterUser:
		payload = &RegisterUserPayload{}
	case FlowChangeEmail:
		payload = &ChangeEmailPayload{}
	case FlowDeleteAccount:
		payload = &DeleteAccountPayload{}
	case FlowLegacyWebActivation:
		payload = &LegacyWebActivationPayload{}
	case FlowPasswordReset:
		payload = &PasswordResetPayload{}
	default:
		return nil, fmt.Errorf("unknown flow kind: %q", envelope.Kind)
	}

	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", envelope.Kind, err)
	}
	return payload, nil
}
