package model

// ProviderEvent is the conferencing provider's event-sink POST body.
type ProviderEvent struct {
	Event string            `json:"event"`
	Data  ProviderEventData `json:"data"`
}

type ProviderEventData struct {
	DestinationAlias string `json:"destination_alias"`
	DisplayName      string `json:"display_name"`
	Role             string `json:"role"`
}

// Provider event names.
const (
	EventParticipantConnected    = "participant_connected"
	EventParticipantDisconnected = "participant_disconnected"
	EventConferenceEnded         = "conference_ended"
)

// Participant roles on the provider side.
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Policy actions.
const (
	ActionContinue = "continue"
	ActionReject   = "reject"
)

// Disconnect causes returned on rejected policy lookups.
const (
	CauseInvalidAlias       = "INVALID_CONFERENCE_ALIAS"
	CauseNoActiveConference = "NO_ACTIVE_CONFERENCE"
)

// PolicyResponse is the service-configuration reply. The transport status is
// always 200; the provider reads only the action field.
type PolicyResponse struct {
	Status string        `json:"status"`
	Action string        `json:"action"`
	Result *PolicyResult `json:"result"`
}

type PolicyResult struct {
	Name                       string `json:"name,omitempty"`
	ServiceTag                 string `json:"service_tag,omitempty"`
	ServiceType                string `json:"service_type,omitempty"`
	AllowGuests                bool   `json:"allow_guests,omitempty"`
	DirectMedia                string `json:"direct_media,omitempty"`
	EnableOverlayText          bool   `json:"enable_overlay_text,omitempty"`
	PIN                        string `json:"pin,omitempty"`
	GuestPIN                   string `json:"guest_pin,omitempty"`
	DisconnectOnHostDisconnect bool   `json:"disconnect_on_host_disconnect,omitempty"`
	Disconnect                 bool   `json:"disconnect,omitempty"`
	DisconnectCause            string `json:"disconnect_cause,omitempty"`
	Message                    string `json:"message,omitempty"`
}
