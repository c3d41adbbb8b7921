package model

import "encoding/json"

// Command is an inbound realtime frame. Type selects the fields that matter;
// the rest stay at their zero values.
type Command struct {
	Type        string          `json:"type"`
	EntryID     int64           `json:"entry_id,omitempty"`
	Status      EntryStatus     `json:"status,omitempty"`
	PatientName string          `json:"patient_name,omitempty"`
	PatientUUID string          `json:"patient_uuid,omitempty"`
	DoctorID    int64           `json:"doctor_id,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	IsActive    bool            `json:"is_active,omitempty"`
}

// Inbound command types.
const (
	CmdUpdateStatus      = "update_status"
	CmdAddPatient        = "add_patient"
	CmdRemovePatient     = "remove_patient"
	CmdPurgeHistory      = "purge_history"
	CmdLeaveQueue        = "leave_queue"
	CmdChatMessage       = "chat_message"
	CmdDrawingData       = "drawing_data"
	CmdWhiteboardToggle  = "whiteboard_toggle"
	CmdWhiteboardHistory = "request_whiteboard_history"
)

// Outbound push types.
const (
	PushWaitingList       = "waiting_list"
	PushChatMessage       = "chat_message"
	PushDrawingData       = "drawing_data"
	PushWhiteboardHistory = "whiteboard_history"
	PushError             = "error"
)

type WaitingListPush struct {
	Type string           `json:"type"`
	Data []*EntrySnapshot `json:"data"`
}

type ChatPush struct {
	Type        string `json:"type"`
	Sender      string `json:"sender"`
	Message     string `json:"message"`
	PatientUUID string `json:"patient_uuid"`
}

type DrawingPush struct {
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	PatientUUID string          `json:"patient_uuid"`
}

type WhiteboardHistoryPush struct {
	Type        string            `json:"type"`
	PatientUUID string            `json:"patient_uuid"`
	Data        []json.RawMessage `json:"data"`
}

type ErrorPush struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Signal kinds fanned out by the broadcast hub.
const (
	SignalRefresh = "refresh"
	SignalChat    = "chat_message"
	SignalDrawing = "drawing_data"
)

// Signal is the hub fan-out payload. Refresh carries no body; chat and
// drawing are relayed verbatim to every group member. The struct is JSON
// round-trippable so the broker-backed hub can ship it between processes.
type Signal struct {
	Kind        string          `json:"kind"`
	Sender      string          `json:"sender,omitempty"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	PatientUUID string          `json:"patient_uuid,omitempty"`
}
